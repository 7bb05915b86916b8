// Package rmw is the middleware core: Context and Node identity,
// typed topic publishers and subscribers with QoS mapped onto transport
// caching, service clients and servers with attachment-based
// correlation, a cooperative Selector event loop with timers, a
// ParameterServer exposing the standard parameter services, and
// liveliness-driven discovery through the graph cache.
//
// A typical program creates one Context, derives Nodes from it, creates
// endpoints from the Nodes, and drives Subscribers/Servers either with
// the suspending Recv/Call methods or by registering them into a
// Selector:
//
//	ctx, err := rmw.NewContext()
//	node, err := ctx.CreateNode("talker", "")
//	pub, err := rmw.NewPublisher[*StringMsg](node, "chatter", nil)
//	pub.Send(&StringMsg{Data: "hello"})
package rmw
