// Command add-two-ints runs both halves of the classic service demo.
// With no arguments it serves /add_two_ints; with two integer
// arguments it calls the service and prints the sum.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jazi007/oxidros/config"
	"github.com/jazi007/oxidros/errors"
	"github.com/jazi007/oxidros/message"
	"github.com/jazi007/oxidros/rmw"
)

var addTwoIntsType = rmw.ServiceType{
	Name: "example_interfaces::srv::dds_::AddTwoInts_",
	Hash: "RIHS01_6a7b1f6b2f334024bb5c3b7a2a2f4a4efb2c33af2e9049feb5c3a2df52c9e6b0",
}

type addRequest struct {
	A int64 `json:"a"`
	B int64 `json:"b"`
}

func (*addRequest) TypeName() string           { return addTwoIntsType.Name }
func (*addRequest) TypeHash() string           { return addTwoIntsType.Hash }
func (m *addRequest) Marshal() ([]byte, error) { return message.MarshalJSON(m) }
func (m *addRequest) Unmarshal(data []byte) error {
	return message.UnmarshalJSON(data, m)
}

type addResponse struct {
	Sum int64 `json:"sum"`
}

func (*addResponse) TypeName() string           { return addTwoIntsType.Name }
func (*addResponse) TypeHash() string           { return addTwoIntsType.Hash }
func (m *addResponse) Marshal() ([]byte, error) { return message.MarshalJSON(m) }
func (m *addResponse) Unmarshal(data []byte) error {
	return message.UnmarshalJSON(data, m)
}

func main() {
	if err := run(); err != nil {
		slog.Error("add-two-ints failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	args, rest, err := config.ParseArgs(os.Args[1:])
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	ctx, err := rmw.NewContext(
		rmw.WithArgs(args),
		rmw.WithContextLogger(logger),
	)
	if err != nil {
		return err
	}
	defer func() { _ = ctx.Shutdown() }()

	if len(rest) == 2 {
		return runClient(ctx, logger, rest)
	}
	return runServer(ctx, logger)
}

func runClient(ctx *rmw.Context, logger *slog.Logger, argv []string) error {
	a, err := strconv.ParseInt(argv[0], 10, 64)
	if err != nil {
		return err
	}
	b, err := strconv.ParseInt(argv[1], 10, 64)
	if err != nil {
		return err
	}

	node, err := ctx.CreateNode("add_two_ints_client", "")
	if err != nil {
		return err
	}
	defer func() { _ = node.Close() }()

	client, err := rmw.NewClient[*addRequest, *addResponse](node, "/add_two_ints", addTwoIntsType, nil)
	if err != nil {
		return err
	}

	res, err := client.CallWithTimeout(5*time.Second, &addRequest{A: a, B: b})
	if err != nil {
		return err
	}
	logger.Info("service responded", "a", a, "b", b, "sum", res.Sum)
	return nil
}

func runServer(ctx *rmw.Context, logger *slog.Logger) error {
	node, err := ctx.CreateNode("add_two_ints_server", "")
	if err != nil {
		return err
	}
	defer func() { _ = node.Close() }()

	server, err := rmw.NewServer[*addRequest, *addResponse](node, "/add_two_ints", addTwoIntsType, nil)
	if err != nil {
		return err
	}

	sel := ctx.CreateSelector()
	rmw.AddServer(sel, server, func(req *rmw.ServiceRequest[*addRequest, *addResponse]) error {
		sum := req.Request.A + req.Request.B
		logger.Info("serving request", "a", req.Request.A, "b", req.Request.B, "sum", sum)
		return req.Send(&addResponse{Sum: sum})
	})

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("serving /add_two_ints, press Ctrl-C to stop")
	for {
		if err := sel.Wait(sigCtx); err != nil {
			if sigCtx.Err() != nil {
				return nil
			}
			if errors.Is(err, errors.ErrTimeout) {
				continue
			}
			return err
		}
	}
}
