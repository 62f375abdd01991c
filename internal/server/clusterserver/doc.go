// Package clusterserver connects usagemesh nodes.
//
//   - discovery.go: memberlist gossip membership, each member advertising
//     the address of its stats RPC endpoint
//   - protocol.go / handler.go: the NodeStats RPC (Connect, structpb messages)
//   - fetcher.go: the collection round, asking every member for its stats
//   - server.go: the RPC listener and lifecycle
//
// Without a gossip address the server runs in single-node mode and the
// membership is the local node alone.
package clusterserver
