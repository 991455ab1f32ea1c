package nats

import (
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	natsgo "github.com/nats-io/nats.go"
)

// StartEmbedded runs an in-process NATS server without network listeners.
func StartEmbedded() (*server.Server, error) {
	ns, err := server.NewServer(&server.Options{
		DontListen: true,
		NoSigs:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create nats server: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(4 * time.Second) {
		ns.Shutdown()
		return nil, errors.New("nats server failed to start within timeout")
	}
	return ns, nil
}

// ConnectInProcess connects to an embedded server.
func ConnectInProcess(ns *server.Server) (*natsgo.Conn, error) {
	conn, err := natsgo.Connect("", natsgo.InProcessServer(ns))
	if err != nil {
		return nil, fmt.Errorf("failed to connect in-process: %w", err)
	}
	return conn, nil
}
