// Package jrpc implements the JSON-RPC 2.0 response envelope and the server and client built on it.
//
// The outcome of a call is an [Outcome], either a result or an [Error]. [Response] wraps it with the protocol
// version and the identifier of the request, and [Batch] is what goes back on the wire for one incoming message: an
// object for a single request, an array for a batch.
//
//	res := jrpc.NewResponse(jrpc.NumberID(7), jrpc.Success(42))
//	// {"jsonrpc":"2.0","id":7,"result":42}
//
//	res = jrpc.InvalidRequestResponse(jrpc.NullID)
//	// {"jsonrpc":"2.0","id":null,"error":{"code":-32600,"message":"Invalid Request"}}
//
// To serve methods, create a [Server] and register handlers on it. The group package registers methods under
// namespaces:
//
//	server := jrpc.NewServer(log.Printf) // Log to standard error. If log is nil, no logging is done.
//
//	var g group.Group
//
//	g.AddMethod("echo", func(args struct{ A string }, reply *string) error {
//		*reply = args.A
//
//		return nil
//	})
//
//	g.Use("math", func(g *group.Group) {
//		g.AddMethod("add", func(args struct{ A, B int }, reply *int) error {
//			*reply = args.A + args.B
//
//			return nil
//		})
//	})
//
//	if err := g.RegisterTo(server); err != nil {
//		log.Fatal(err)
//	}
//
//	// Via TCP
//	lis, err := net.Listen("tcp", ":8080")
//	if err != nil {
//		log.Fatalf("failed to listen: %v", err)
//	}
//
//	if err := server.Accept(context.Background(), lis); err != nil {
//		log.Fatalf("failed to accept: %v", err)
//	}
//
//	// Via HTTP
//	// http.Handle("/rpc", server)
//
// A handler that returns an [Error] sends it to the client as is; any other error is logged and answered with an
// internal error.
//
// To call methods, use a [Client]:
//
//	conn, err := net.Dial("tcp", "localhost:8080")
//	if err != nil {
//		log.Fatalf("failed to connect: %v", err)
//	}
//
//	errCh := make(chan error, 1)
//
//	c := jrpc.NewClient(conn)
//	go c.Input(context.Background(), errCh)
//
//	call := c.Call(jrpc.Call("math.add").Args([]int{1, 2}))
//	if call.Error != nil {
//		log.Printf("error: %v", call.Error)
//		return
//	}
//
//	var sum int
//	if err := call.Result[0].Decode(&sum); err != nil {
//		log.Printf("error: %v", err)
//	}
package jrpc
