// Package metrics exposes prometheus metrics of the voting engine. They are
// fed by a ballot event listener, so the engine itself knows nothing about
// them.
package metrics

import (
	"errors"
	"strconv"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"go.vocdoni.io/anonvote/ballot"
	"go.vocdoni.io/anonvote/group"
	"go.vocdoni.io/anonvote/httprouter"
	"go.vocdoni.io/anonvote/log"
	"go.vocdoni.io/anonvote/nullifier"
)

const namespace = "anonvote"

// Rejection reasons used as label values.
const (
	ReasonInvalidProposal = "invalid_proposal"
	ReasonInvalidProof    = "invalid_proof"
	ReasonAlreadyVoted    = "already_voted"
	ReasonClosed          = "closed"
	ReasonDuplicate       = "duplicate_member"
	ReasonInvalidInput    = "invalid_input"
	ReasonOther           = "other"
)

// Collector holds the engine metrics and implements ballot.EventListener.
type Collector struct {
	BallotsCreated prometheus.Counter
	BallotsClosed  prometheus.Counter
	Joins          prometheus.Counter
	JoinsRejected  *prometheus.CounterVec
	Votes          *prometheus.CounterVec
	VotesRejected  *prometheus.CounterVec
	GroupSize      *prometheus.GaugeVec
}

var _ ballot.EventListener = (*Collector)(nil)

// NewCollector returns the engine metrics, not registered yet.
func NewCollector() *Collector {
	return &Collector{
		BallotsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ballots_created_total",
			Help:      "The number of ballots created",
		}),
		BallotsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ballots_closed_total",
			Help:      "The number of ballots closed",
		}),
		Joins: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "joins_total",
			Help:      "The number of identity commitments accepted",
		}),
		JoinsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "joins_rejected_total",
			Help:      "The number of joins rejected, by reason",
		}, []string{"reason"}),
		Votes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "votes_total",
			Help:      "The number of votes accepted, by proposal index",
		}, []string{"proposal"}),
		VotesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "votes_rejected_total",
			Help:      "The number of votes rejected, by reason",
		}, []string{"reason"}),
		GroupSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "group_size",
			Help:      "The number of members of each group",
		}, []string{"group"}),
	}
}

// Register registers all the collectors in the default prometheus registry.
func (c *Collector) Register() {
	Register(c.BallotsCreated)
	Register(c.BallotsClosed)
	Register(c.Joins)
	Register(c.JoinsRejected)
	Register(c.Votes)
	Register(c.VotesRejected)
	Register(c.GroupSize)
}

// OnBallotCreated implements ballot.EventListener.
func (c *Collector) OnBallotCreated(info *ballot.Info) {
	c.BallotsCreated.Inc()
	c.GroupSize.WithLabelValues(info.GroupID.String()).Set(float64(info.GroupSize))
}

// OnJoin implements ballot.EventListener.
func (c *Collector) OnJoin(_ []byte, groupID uuid.UUID, groupSize uint64) {
	c.Joins.Inc()
	c.GroupSize.WithLabelValues(groupID.String()).Set(float64(groupSize))
}

// OnJoinRejected implements ballot.EventListener.
func (c *Collector) OnJoinRejected(_ []byte, err error) {
	c.JoinsRejected.WithLabelValues(Reason(err)).Inc()
}

// OnVote implements ballot.EventListener.
func (c *Collector) OnVote(_ []byte, proposal int) {
	// label cardinality is bounded by types.MaxProposals
	c.Votes.WithLabelValues(strconv.Itoa(proposal)).Inc()
}

// OnVoteRejected implements ballot.EventListener.
func (c *Collector) OnVoteRejected(_ []byte, err error) {
	c.VotesRejected.WithLabelValues(Reason(err)).Inc()
}

// OnBallotClosed implements ballot.EventListener.
func (c *Collector) OnBallotClosed([]byte) {
	c.BallotsClosed.Inc()
}

// Reason returns the label value for a rejected operation.
func Reason(err error) string {
	switch {
	case errors.Is(err, ballot.ErrInvalidProposal):
		return ReasonInvalidProposal
	case errors.Is(err, ballot.ErrInvalidProof):
		return ReasonInvalidProof
	case errors.Is(err, ballot.ErrAlreadyVoted):
		return ReasonAlreadyVoted
	case errors.Is(err, ballot.ErrBallotClosed):
		return ReasonClosed
	case errors.Is(err, ballot.ErrDuplicateMember):
		return ReasonDuplicate
	case errors.Is(err, group.ErrInvalidCommitment), errors.Is(err, nullifier.ErrInvalidNullifier):
		return ReasonInvalidInput
	}
	return ReasonOther
}

// Enable registers the collector and exposes the metrics of the default
// registry at path, with go-chi request metrics.
func Enable(c *Collector, router *httprouter.HTTProuter, path string) {
	c.Register()
	router.EnablePrometheusMetrics(namespace + "_http")
	router.ExposePrometheusEndpoint(path)
}

// Register the provided prometheus collector, ignoring any error returned (simply logs a Warn)
func Register(c prometheus.Collector) {
	if err := prometheus.Register(c); err != nil {
		log.Warnw("cannot register metrics", "error", err)
	}
}
