package routing

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/netsim/network/topology"
)

var _ = Describe("Populate", func() {
	var (
		g                          *topology.Graph
		server, router, ap, c0, c1 topology.NodeID
		l0, l1, wifi               topology.MediumID
	)

	BeforeEach(func() {
		g = topology.NewGraph()
		server = g.AddNode("server").ID()
		router = g.AddNode("router").ID()
		ap = g.AddNode("ap").ID()
		c0 = g.AddNode("c0").ID()
		c1 = g.AddNode("c1").ID()

		link0, _ := g.AddLink(server, router, topology.LinkSpec{})
		link1, _ := g.AddLink(router, ap, topology.LinkSpec{})
		channel, _ := g.AddChannel(
			[]topology.NodeID{c0, c1, ap}, topology.ChannelSpec{})
		l0, l1, wifi = link0.ID(), link1.ID(), channel.ID()
	})

	It("should route clients through the access point", func() {
		tables := Populate(g)

		t, ok := tables.Of(c0)
		Expect(ok).To(BeTrue())

		r, ok := t.Lookup(server)
		Expect(ok).To(BeTrue())
		Expect(r).To(Equal(Route{Medium: wifi, NextHop: ap, Hops: 3}))

		r, _ = t.Lookup(c1)
		Expect(r).To(Equal(Route{Medium: wifi, NextHop: c1, Hops: 1}))
		Expect(t.Len()).To(Equal(4))
	})

	It("should route the server through the router", func() {
		tables := Populate(g)
		t, _ := tables.Of(server)

		for _, dst := range []topology.NodeID{router, ap, c0, c1} {
			r, ok := t.Lookup(dst)
			Expect(ok).To(BeTrue())
			Expect(r.Medium).To(Equal(l0))
			Expect(r.NextHop).To(Equal(router))
		}

		rt, _ := tables.Of(router)
		r, _ := rt.Lookup(c1)
		Expect(r).To(Equal(Route{Medium: l1, NextHop: ap, Hops: 2}))
	})

	It("should prefer the earlier interface on ties", func() {
		extra := g.AddNode("extra").ID()
		_, _ = g.AddLink(server, extra, topology.LinkSpec{})
		_, _ = g.AddLink(extra, ap, topology.LinkSpec{})

		tables := Populate(g)
		t, _ := tables.Of(server)

		r, _ := t.Lookup(ap)
		Expect(r.NextHop).To(Equal(router))
		Expect(r.Hops).To(Equal(2))
	})

	It("should notice topology changes", func() {
		tables := Populate(g)
		Expect(tables.Stale(g)).To(BeFalse())

		Expect(g.RemoveNode(router)).To(Succeed())

		Expect(tables.Stale(g)).To(BeTrue())
		t, _ := Populate(g).Of(c0)
		_, ok := t.Lookup(server)
		Expect(ok).To(BeFalse())
	})
})
