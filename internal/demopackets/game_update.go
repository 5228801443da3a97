// Package demopackets holds the application-level message kinds used by
// the gma4jd/gma4jc demo binaries, showing how an embedding application
// registers its own packets alongside the protocol's built-in ones.
package demopackets

import "github.com/lolyay/gma4j-go/pkg/ws"

func init() {
	ws.Register("PacketGameUpdate", func() ws.Packet { return &PacketGameUpdate{} })
}

// PacketGameUpdate is a demo application packet, exchanged only after a
// session has authenticated.
type PacketGameUpdate struct {
	Action string `json:"action"`
	Data   string `json:"data"`
}

func (*PacketGameUpdate) PacketTag() string { return "PacketGameUpdate" }
