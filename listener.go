package main

import (
	"fmt"
	"net"
	"os"
	"strings"
)

// createHTTPListener creates the status listener socket.
// Supports both TCP and Unix socket listeners based on configuration
func createHTTPListener(listenerType, addr string) (net.Listener, error) {
	var listener net.Listener
	var err error

	switch strings.ToLower(listenerType) {
	case "tcp", "":
		listener, err = net.Listen("tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("failed to create TCP listener on %s: %w", addr, err)
		}
	case "unix":
		// For Unix socket, remove the socket file if it exists
		if err := os.RemoveAll(addr); err != nil {
			return nil, fmt.Errorf("failed to remove existing socket file %s: %w", addr, err)
		}

		listener, err = net.Listen("unix", addr)
		if err != nil {
			return nil, fmt.Errorf("failed to create Unix socket listener on %s: %w", addr, err)
		}

		if err := os.Chmod(addr, 0666); err != nil {
			listener.Close()
			return nil, fmt.Errorf("failed to set permissions on socket file %s: %w", addr, err)
		}
	default:
		return nil, fmt.Errorf("unsupported listener type: %s (supported: tcp, unix)", listenerType)
	}

	return listener, nil
}
