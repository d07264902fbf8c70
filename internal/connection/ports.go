package connection

import (
	"fmt"
	"net"
)

// FreePorts reserves n distinct free TCP ports on loopback. All listeners
// are held open until every port is allocated so the kernel's five channels
// never collide with each other.
func FreePorts(n int) ([]int, error) {
	listeners := make([]net.Listener, 0, n)
	defer func() {
		for _, l := range listeners {
			l.Close()
		}
	}()

	ports := make([]int, 0, n)
	for i := 0; i < n; i++ {
		l, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return nil, fmt.Errorf("listen: %w", err)
		}
		listeners = append(listeners, l)
		addr, ok := l.Addr().(*net.TCPAddr)
		if !ok {
			return nil, fmt.Errorf("unexpected listener address %T", l.Addr())
		}
		ports = append(ports, addr.Port)
	}
	return ports, nil
}
