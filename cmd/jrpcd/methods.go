package main

import (
	"github.com/kytnacode/go-jrpcwire"
	"github.com/kytnacode/go-jrpcwire/group"
)

// DivisionByZero is the code of the error returned by math.div when the divisor is zero.
const DivisionByZero = -32010

type echoArgs struct {
	Message string `json:"message"`
}

type operands struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
}

func echo(args echoArgs, reply *string) error {
	*reply = args.Message

	return nil
}

func add(args operands, reply *float64) error {
	*reply = args.A + args.B

	return nil
}

func sub(args operands, reply *float64) error {
	*reply = args.A - args.B

	return nil
}

func mul(args operands, reply *float64) error {
	*reply = args.A * args.B

	return nil
}

func div(args operands, reply *float64) error {
	if args.B == 0 {
		e, err := jrpc.NewError(DivisionByZero, "Division by zero").WithData(args.A)
		if err != nil {
			return err
		}

		return e
	}

	*reply = args.A / args.B

	return nil
}

// methods returns the methods served by jrpcd.
func methods() *group.Group {
	var g group.Group

	g.AddMethod("echo", echo)

	g.Use("math", func(g *group.Group) {
		g.AddMethod("add", add)
		g.AddMethod("sub", sub)
		g.AddMethod("mul", mul)
		g.AddMethod("div", div)
	})

	return &g
}
