package config

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestValidate(t *testing.T) {
	c := NewConfig()
	c.API.ListenPort = DefaultListenPort
	c.Verifier.VerifyingKey = "/tmp/vk"
	qt.Assert(t, c.Validate(), qt.IsNil)

	c.DBType = "sqlite"
	qt.Assert(t, c.Validate(), qt.ErrorMatches, "dbType sqlite is invalid")
	c.DBType = DefaultDBType

	c.API.ListenPort = 0
	qt.Assert(t, c.Validate(), qt.ErrorMatches, "invalid listen port 0")
	c.API.ListenPort = DefaultListenPort

	c.Verifier.Insecure = true
	qt.Assert(t, c.Validate(), qt.ErrorMatches, "insecure verifier requires dev mode")
	c.Dev = true
	qt.Assert(t, c.Validate(), qt.IsNil)

	c.Verifier = &VerifierCfg{}
	qt.Assert(t, c.Validate(), qt.ErrorMatches, "no verifying key configured")
	c.Verifier.VerifyingKeysByDepth = map[int]string{20: "/tmp/vk20"}
	qt.Assert(t, c.Validate(), qt.IsNil)
}
