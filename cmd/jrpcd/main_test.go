package main

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/alecthomas/kong"

	"github.com/kytnacode/go-jrpcwire"
	"github.com/kytnacode/go-jrpcwire/internal/config"
	"github.com/kytnacode/go-jrpcwire/internal/jsonutil"
)

func testServer(t *testing.T) *jrpc.Server {
	t.Helper()

	s, err := newServer(&config.Config{}, nil)
	if err != nil {
		t.Fatalf("newServer() error = %v", err)
	}

	return s
}

func TestMethods(t *testing.T) {
	t.Parallel()

	type data struct {
		request  string
		response string
	}

	tests := map[string]data{
		"echo": {
			request:  `{"jsonrpc":"2.0","method":"echo","params":{"message":"hi"},"id":1}`,
			response: `{"jsonrpc":"2.0","id":1,"result":"hi"}`,
		},
		"add": {
			request:  `{"jsonrpc":"2.0","method":"math.add","params":[1,2],"id":2}`,
			response: `{"jsonrpc":"2.0","id":2,"result":3}`,
		},
		"sub": {
			request:  `{"jsonrpc":"2.0","method":"math.sub","params":{"a":1,"b":2},"id":3}`,
			response: `{"jsonrpc":"2.0","id":3,"result":-1}`,
		},
		"mul": {
			request:  `{"jsonrpc":"2.0","method":"math.mul","params":[3,4],"id":4}`,
			response: `{"jsonrpc":"2.0","id":4,"result":12}`,
		},
		"div": {
			request:  `{"jsonrpc":"2.0","method":"math.div","params":[1,4],"id":5}`,
			response: `{"jsonrpc":"2.0","id":5,"result":0.25}`,
		},
		"division-by-zero": {
			request:  `{"jsonrpc":"2.0","method":"math.div","params":[7,0],"id":6}`,
			response: `{"jsonrpc":"2.0","id":6,"error":{"code":-32010,"message":"Division by zero","data":7}}`,
		},
	}

	s := testServer(t)

	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			res, ok := s.Handle(context.Background(), []byte(data.request))
			if !ok {
				t.Fatal("Handle() returned no response")
			}

			got, err := json.Marshal(res)
			if err != nil {
				t.Fatal(err)
			}

			if !jsonutil.Equal(got, []byte(data.response)) {
				t.Errorf("Handle() = %s, want %s", got, data.response)
			}
		})
	}
}

func TestMethodNames(t *testing.T) {
	t.Parallel()

	want := []string{"echo", "math.add", "math.div", "math.mul", "math.sub"}

	got := methods().Methods()
	if len(got) != len(want) {
		t.Fatalf("Methods() = %v, want %v", got, want)
	}

	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Methods()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestCLIFlagsOverrideConfig(t *testing.T) {
	t.Setenv("JRPCD_LISTEN", ":9999")
	t.Setenv("JRPCD_TRANSPORT", "")

	var cli CLI

	parser, err := kong.New(&cli, kong.Vars{"version": "test"})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := parser.Parse([]string{"--listen", "127.0.0.1:0", "--transport", "http"}); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	cfg, err := cli.config()
	if err != nil {
		t.Fatalf("config() error = %v", err)
	}

	if cfg.Listen != "127.0.0.1:0" || cfg.Transport != config.TransportHTTP {
		t.Errorf("config() = %+v, want flags to override the environment", *cfg)
	}

	cli.Transport = "HTTP"

	if cfg, err := cli.config(); err != nil || cfg.Transport != config.TransportHTTP {
		t.Errorf("config() = %v, %v, want the transport flag to ignore case", cfg, err)
	}

	cli.Transport = "udp"

	if _, err := cli.config(); err == nil {
		t.Error("config() error = nil, want an invalid transport error")
	}
}

func TestServeTCP(t *testing.T) {
	t.Parallel()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	addr := lis.Addr().String()
	_ = lis.Close()

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)

	go func() { done <- serveTCP(ctx, &config.Config{Listen: addr}, testServer(t)) }()

	var conn net.Conn

	for range 50 {
		if conn, err = net.Dial("tcp", addr); err == nil {
			break
		}

		time.Sleep(10 * time.Millisecond)
	}

	if err != nil {
		cancel()
		t.Fatalf("failed to connect: %v", err)
	}

	c := jrpc.NewClient(conn)
	go c.Input(ctx, nil)

	call := c.Call(jrpc.Call("math.add").Args([]float64{1, 2}))

	var sum float64
	if err := call.Result[0].Decode(&sum); err != nil || sum != 3 {
		t.Errorf("math.add = %v (%v), want 3", sum, err)
	}

	cancel()

	if err := <-done; err != nil {
		t.Errorf("serveTCP() error = %v", err)
	}
}
