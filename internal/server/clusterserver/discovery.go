// Package clusterserver provides node discovery using gossip.
package clusterserver

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/memberlist"

	"github.com/yndnr/usagemesh-go/internal/infra/buildinfo"
)

// leaveTimeout bounds the wait for the leave broadcast.
const leaveTimeout = 2 * time.Second

// Member is one node of the cluster.
type Member struct {
	NodeID  string `json:"node_id"`
	RPCAddr string `json:"rpc_addr"`
	Local   bool   `json:"local"`
}

// Membership lists the nodes a collection round asks.
type Membership interface {
	Members() []Member
}

// StaticMembers is a fixed membership.
type StaticMembers []Member

// Members implements Membership.
func (s StaticMembers) Members() []Member {
	out := make([]Member, len(s))
	copy(out, s)
	return out
}

// nodeMetadata is gossiped with every member.
type nodeMetadata struct {
	RPCAddr string `json:"rpc_addr"`
	Version string `json:"version,omitempty"`
}

// Discovery tracks cluster membership with memberlist.
type Discovery struct {
	memberList *memberlist.Memberlist
	logger     *slog.Logger

	mu       sync.RWMutex
	shutdown bool
	onJoin   func(Member)
	onLeave  func(nodeID string)
}

// DiscoveryConfig configures the discovery mechanism.
type DiscoveryConfig struct {
	// NodeID is the unique node identifier, used as the memberlist name.
	NodeID string

	// BindAddr and BindPort are the gossip listen address.
	BindAddr string
	BindPort int

	// RPCAddr is published in node metadata for stats requests.
	RPCAddr string

	// SeedNodes are the initial gossip addresses to join.
	SeedNodes []string

	Logger *slog.Logger
}

// NewDiscovery starts gossip and joins the seed nodes.
func NewDiscovery(cfg DiscoveryConfig) (*Discovery, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	meta, err := json.Marshal(nodeMetadata{RPCAddr: cfg.RPCAddr, Version: buildinfo.Version})
	if err != nil {
		return nil, fmt.Errorf("encode node metadata: %w", err)
	}

	d := &Discovery{logger: cfg.Logger}

	mlConfig := memberlist.DefaultLANConfig()
	mlConfig.Name = cfg.NodeID
	mlConfig.BindAddr = cfg.BindAddr
	mlConfig.BindPort = cfg.BindPort
	mlConfig.AdvertisePort = cfg.BindPort
	mlConfig.Delegate = &metadataDelegate{meta: meta}
	mlConfig.Events = &eventDelegate{discovery: d}
	mlConfig.LogOutput = &slogWriter{logger: cfg.Logger}

	ml, err := memberlist.Create(mlConfig)
	if err != nil {
		return nil, fmt.Errorf("create memberlist: %w", err)
	}
	d.memberList = ml

	if len(cfg.SeedNodes) > 0 {
		n, err := ml.Join(cfg.SeedNodes)
		if err != nil {
			_ = ml.Shutdown()
			return nil, fmt.Errorf("join seed nodes: %w", err)
		}
		cfg.Logger.Info("joined cluster",
			"node_id", cfg.NodeID,
			"seed_nodes", cfg.SeedNodes,
			"joined_count", n)
	} else {
		cfg.Logger.Info("started discovery without seeds",
			"node_id", cfg.NodeID)
	}

	return d, nil
}

// Members returns the live members sorted by node id. Members that do not
// advertise an RPC address are skipped.
func (d *Discovery) Members() []Member {
	if d.memberList == nil {
		return nil
	}

	local := d.memberList.LocalNode().Name
	nodes := d.memberList.Members()
	members := make([]Member, 0, len(nodes))
	for _, node := range nodes {
		m, ok := d.toMember(node)
		if !ok {
			continue
		}
		m.Local = node.Name == local
		members = append(members, m)
	}

	sort.Slice(members, func(i, j int) bool { return members[i].NodeID < members[j].NodeID })
	return members
}

func (d *Discovery) toMember(node *memberlist.Node) (Member, bool) {
	var meta nodeMetadata
	if err := json.Unmarshal(node.Meta, &meta); err != nil || meta.RPCAddr == "" {
		d.logger.Warn("member without rpc address",
			"node_id", node.Name,
			"gossip_addr", gossipAddr(node))
		return Member{}, false
	}
	return Member{NodeID: node.Name, RPCAddr: meta.RPCAddr}, true
}

// LocalNode returns the local memberlist node.
func (d *Discovery) LocalNode() *memberlist.Node {
	if d.memberList == nil {
		return nil
	}
	return d.memberList.LocalNode()
}

// GossipAddr returns the local gossip address as host:port.
func (d *Discovery) GossipAddr() string {
	if n := d.LocalNode(); n != nil {
		return gossipAddr(n)
	}
	return ""
}

// OnJoin registers a callback for node join events.
func (d *Discovery) OnJoin(fn func(Member)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onJoin = fn
}

// OnLeave registers a callback for node leave events.
func (d *Discovery) OnLeave(fn func(nodeID string)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onLeave = fn
}

// Leave broadcasts that this node is leaving.
func (d *Discovery) Leave() error {
	if d.memberList == nil {
		return nil
	}
	if err := d.memberList.Leave(leaveTimeout); err != nil {
		d.logger.Error("failed to leave cluster", "error", err)
		return err
	}
	d.logger.Info("left cluster")
	return nil
}

// Shutdown stops gossip. It is safe to call more than once.
func (d *Discovery) Shutdown() error {
	d.mu.Lock()
	if d.shutdown || d.memberList == nil {
		d.mu.Unlock()
		return nil
	}
	d.shutdown = true
	d.mu.Unlock()

	if err := d.memberList.Shutdown(); err != nil {
		return fmt.Errorf("shutdown memberlist: %w", err)
	}
	d.logger.Info("discovery shutdown complete")
	return nil
}

func gossipAddr(node *memberlist.Node) string {
	return net.JoinHostPort(node.Addr.String(), strconv.Itoa(int(node.Port)))
}

// eventDelegate implements memberlist.EventDelegate.
type eventDelegate struct {
	discovery *Discovery
}

func (e *eventDelegate) NotifyJoin(node *memberlist.Node) {
	d := e.discovery
	m, ok := d.toMember(node)
	if !ok {
		return
	}
	d.logger.Info("node joined",
		"node_id", m.NodeID,
		"gossip_addr", gossipAddr(node),
		"rpc_addr", m.RPCAddr)

	d.mu.RLock()
	fn := d.onJoin
	d.mu.RUnlock()
	if fn != nil {
		fn(m)
	}
}

func (e *eventDelegate) NotifyLeave(node *memberlist.Node) {
	d := e.discovery
	d.logger.Info("node left", "node_id", node.Name)

	d.mu.RLock()
	fn := d.onLeave
	d.mu.RUnlock()
	if fn != nil {
		fn(node.Name)
	}
}

func (e *eventDelegate) NotifyUpdate(node *memberlist.Node) {
	e.discovery.logger.Debug("node updated", "node_id", node.Name)
}

// slogWriter adapts slog.Logger to io.Writer for memberlist.
type slogWriter struct {
	logger *slog.Logger
}

func (w *slogWriter) Write(p []byte) (int, error) {
	w.logger.Debug(string(p))
	return len(p), nil
}

// metadataDelegate publishes node metadata to memberlist.
type metadataDelegate struct {
	meta []byte
}

func (m *metadataDelegate) NodeMeta(limit int) []byte {
	if len(m.meta) > limit {
		return nil
	}
	return m.meta
}

func (m *metadataDelegate) NotifyMsg([]byte) {}
func (m *metadataDelegate) GetBroadcasts(int, int) [][]byte { return nil }
func (m *metadataDelegate) LocalState(bool) []byte { return nil }
func (m *metadataDelegate) MergeRemoteState([]byte, bool) {}
