// Command talker publishes a counted greeting once per second until
// interrupted. It demonstrates context setup, argument parsing, and a
// timer-driven publisher.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jazi007/oxidros/config"
	"github.com/jazi007/oxidros/errors"
	"github.com/jazi007/oxidros/message"
	"github.com/jazi007/oxidros/rmw"
)

// stringMsg mirrors std_msgs/String with a JSON wire form.
type stringMsg struct {
	Data string `json:"data"`
}

func (*stringMsg) TypeName() string { return "std_msgs::msg::dds_::String_" }
func (*stringMsg) TypeHash() string {
	return "RIHS01_df668c740482bbd48fb39d76a70dfd4bd59db1288021743503259e948f6b1a18"
}
func (m *stringMsg) Marshal() ([]byte, error)    { return message.MarshalJSON(m) }
func (m *stringMsg) Unmarshal(data []byte) error { return message.UnmarshalJSON(data, m) }

func main() {
	if err := run(); err != nil {
		slog.Error("talker failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	args, _, err := config.ParseArgs(os.Args[1:])
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

	node, err := ctx.CreateNode("talker", "")
	if err != nil {
		return err
	}
	defer func() { _ = node.Close() }()

	pub, err := rmw.NewPublisher[*stringMsg](node, "chatter", nil)
	if err != nil {
		return err
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sel := ctx.CreateSelector()
	count := 0
	sel.AddWallTimer("chatter", time.Second, func() error {
		count++
		msg := &stringMsg{Data: fmt.Sprintf("Hello World: %d", count)}
		logger.Info("publishing", "data", msg.Data)
		return pub.Send(msg)
	})

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
