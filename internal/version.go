package internal

// Version is the build version, set at link time with
// -ldflags "-X go.vocdoni.io/anonvote/internal.Version=..."
var Version = "dev"
