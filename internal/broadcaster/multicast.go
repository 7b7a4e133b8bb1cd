package broadcaster

import (
	"errors"
	"fmt"
	"net"
	"strconv"

	"golang.org/x/net/ipv4"
)

// MulticastOptions addresses the PSN group.
type MulticastOptions struct {
	Group     string
	Port      int
	Interface string
	TTL       int
	Loopback  bool
}

func (o MulticastOptions) groupAddr() (*net.UDPAddr, error) {
	ip := net.ParseIP(o.Group).To4()
	if ip == nil || !ip.IsMulticast() {
		return nil, fmt.Errorf("psn group %q is not an IPv4 multicast address", o.Group)
	}
	if o.Port <= 0 || o.Port > 65535 {
		return nil, fmt.Errorf("psn port %d out of range", o.Port)
	}
	return &net.UDPAddr{IP: ip, Port: o.Port}, nil
}

func (o MulticastOptions) iface() (*net.Interface, error) {
	if o.Interface == "" {
		return nil, nil
	}
	ifi, err := net.InterfaceByName(o.Interface)
	if err != nil {
		return nil, fmt.Errorf("psn interface %q: %w", o.Interface, err)
	}
	return ifi, nil
}

// MulticastSender writes datagrams to the PSN group.
type MulticastSender struct {
	conn *ipv4.PacketConn
	dst  *net.UDPAddr
}

// DialMulticast opens an unbound UDP socket configured for multicast output.
func DialMulticast(opts MulticastOptions) (*MulticastSender, error) {
	dst, err := opts.groupAddr()
	if err != nil {
		return nil, err
	}
	ifi, err := opts.iface()
	if err != nil {
		return nil, err
	}
	c, err := net.ListenPacket("udp4", "0.0.0.0:0")
	if err != nil {
		return nil, fmt.Errorf("open psn socket: %w", err)
	}
	pc := ipv4.NewPacketConn(c)
	if err := configure(pc, opts, ifi); err != nil {
		_ = c.Close()
		return nil, err
	}
	return &MulticastSender{conn: pc, dst: dst}, nil
}

func configure(pc *ipv4.PacketConn, opts MulticastOptions, ifi *net.Interface) error {
	if err := pc.SetMulticastTTL(opts.TTL); err != nil {
		return fmt.Errorf("set multicast ttl: %w", err)
	}
	if err := pc.SetMulticastLoopback(opts.Loopback); err != nil {
		return fmt.Errorf("set multicast loopback: %w", err)
	}
	if ifi != nil {
		if err := pc.SetMulticastInterface(ifi); err != nil {
			return fmt.Errorf("set multicast interface %s: %w", ifi.Name, err)
		}
	}
	return nil
}

// Destination returns the group address packets are sent to.
func (s *MulticastSender) Destination() string { return s.dst.String() }

// Send writes one datagram to the group.
func (s *MulticastSender) Send(packet []byte) error {
	_, err := s.conn.WriteTo(packet, nil, s.dst)
	return err
}

// Close releases the socket.
func (s *MulticastSender) Close() error {
	err := s.conn.Close()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// Receiver joins the PSN group and reads raw packets. It backs the monitor
// command.
type Receiver struct {
	conn  *ipv4.PacketConn
	group *net.UDPAddr
	ifi   *net.Interface
}

// ListenMulticast binds the group port and joins the group.
func ListenMulticast(opts MulticastOptions) (*Receiver, error) {
	group, err := opts.groupAddr()
	if err != nil {
		return nil, err
	}
	ifi, err := opts.iface()
	if err != nil {
		return nil, err
	}
	c, err := net.ListenPacket("udp4", net.JoinHostPort("0.0.0.0", strconv.Itoa(opts.Port)))
	if err != nil {
		return nil, fmt.Errorf("bind psn port %d: %w", opts.Port, err)
	}
	pc := ipv4.NewPacketConn(c)
	if err := pc.JoinGroup(ifi, &net.UDPAddr{IP: group.IP}); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("join psn group %s: %w", group.IP, err)
	}
	return &Receiver{conn: pc, group: group, ifi: ifi}, nil
}

// Read blocks for the next datagram.
func (r *Receiver) Read(buf []byte) (int, net.Addr, error) {
	n, _, src, err := r.conn.ReadFrom(buf)
	return n, src, err
}

// Close leaves the group and releases the socket.
func (r *Receiver) Close() error {
	_ = r.conn.LeaveGroup(r.ifi, &net.UDPAddr{IP: r.group.IP})
	err := r.conn.Close()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
