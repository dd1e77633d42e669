package testfixtures

import (
	"strconv"
	"sync/atomic"
)

// IDGenerator hands out predictable Message-IDs and UIDs so assertions can
// name them up front: msg-1, msg-2 and so on.
type IDGenerator struct {
	prefix string
	issued atomic.Uint64
}

func NewIDGenerator(prefix string) *IDGenerator {
	if prefix == "" {
		prefix = "id"
	}
	return &IDGenerator{prefix: prefix}
}

func (g *IDGenerator) Next() string {
	return g.prefix + "-" + strconv.FormatUint(g.issued.Add(1), 10)
}

// NextFunc is Next in injectable form. A nil generator yields empty ids, so a
// mailer given it renders Message-IDs as <@domain>; leave NewID nil instead to
// get random ids.
func (g *IDGenerator) NextFunc() func() string {
	if g == nil {
		return func() string { return "" }
	}
	return g.Next
}

// Issued reports how many ids Next has handed out.
func (g *IDGenerator) Issued() uint64 {
	return g.issued.Load()
}
