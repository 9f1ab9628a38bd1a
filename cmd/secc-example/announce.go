package main

import (
	"fmt"
	"log"
	"net"
	"strconv"

	"github.com/enbility/zeroconf/v3"
)

// serviceType is the mDNS service type this listener advertises itself
// under, mirroring the way pkg/discovery advertises a MASH device but
// naming an EV-charging listener instead.
const serviceType = "_ev-charger._tcp"

const mdnsDomain = "local"

// announcer wraps the one zeroconf.Server this demonstration binary
// registers. It is not part of the protocol: discovery is explicitly out
// of scope for the SECC's own message catalogs, but advertising the
// listener makes the example binary discoverable the way the teacher's
// own example commands advertise themselves.
type announcer struct {
	server *zeroconf.Server
}

func newAnnouncer(listenAddr, evseID string) (*announcer, error) {
	_, portStr, err := net.SplitHostPort(listenAddr)
	if err != nil {
		return nil, fmt.Errorf("secc-example: parse listen address: %w", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("secc-example: parse listen port: %w", err)
	}

	instanceName := fmt.Sprintf("SECC-%s", evseID)
	txt := []string{"evse_id=" + evseID}

	server, err := zeroconf.Register(instanceName, serviceType, mdnsDomain, port, txt, nil)
	if err != nil {
		return nil, fmt.Errorf("secc-example: register mDNS service: %w", err)
	}
	log.Printf("secc-example: advertising %s on %s", instanceName, serviceType)
	return &announcer{server: server}, nil
}

func (a *announcer) shutdown() {
	if a != nil && a.server != nil {
		a.server.Shutdown()
	}
}
