package main

import (
	"encoding/json"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/Haimaimon/arrival-confirmation-system/pkg/infrastructure/transport/grpc"
)

var addrFlag = &cli.StringFlag{
	Name:    "addr",
	Usage:   "gRPC address of a running outreach server",
	Value:   "localhost:9090",
	EnvVars: []string{"OUTREACH_GRPC_TARGET"},
}

func sendCommand() *cli.Command {
	return &cli.Command{
		Name:  "send",
		Usage: "send one notification to a recipient",
		Flags: []cli.Flag{
			addrFlag,
			&cli.StringFlag{Name: "event", Required: true},
			&cli.StringFlag{Name: "recipient", Required: true},
			&cli.StringFlag{Name: "channel", Value: "SMS", Usage: "SMS, WHATSAPP or VOICE"},
			&cli.StringFlag{Name: "message", Usage: "template with {{firstName}}, {{lastName}}, {{fullName}} and {{eventName}} placeholders"},
		},
		Action: func(c *cli.Context) error {
			req := map[string]interface{}{
				"eventId":     c.String("event"),
				"recipientId": c.String("recipient"),
				"channel":     c.String("channel"),
			}
			if c.IsSet("message") {
				req["message"] = c.String("message")
			}
			return withClient(c, func(client *grpc.Client) (map[string]interface{}, error) {
				return client.SendNotification(c.Context, req)
			})
		},
	}
}

func dispatchCommand() *cli.Command {
	return &cli.Command{
		Name:  "dispatch",
		Usage: "send one message to many recipients of an event",
		Flags: []cli.Flag{
			addrFlag,
			&cli.StringFlag{Name: "event", Required: true},
			&cli.StringFlag{Name: "channel", Value: "SMS"},
			&cli.StringFlag{Name: "message"},
			&cli.StringSliceFlag{Name: "recipient", Usage: "restrict to these recipients, repeatable"},
			&cli.StringFlag{Name: "initiated-by", Value: os.Getenv("USER")},
		},
		Action: func(c *cli.Context) error {
			ids := make([]interface{}, 0, len(c.StringSlice("recipient")))
			for _, id := range c.StringSlice("recipient") {
				ids = append(ids, id)
			}
			req := map[string]interface{}{
				"eventId":      c.String("event"),
				"channel":      c.String("channel"),
				"recipientIds": ids,
				"initiatedBy":  c.String("initiated-by"),
			}
			if c.IsSet("message") {
				req["message"] = c.String("message")
			}
			return withClient(c, func(client *grpc.Client) (map[string]interface{}, error) {
				return client.DispatchBatch(c.Context, req)
			})
		},
	}
}

func batchCommand() *cli.Command {
	return &cli.Command{
		Name:      "batch",
		Usage:     "show a notification batch",
		ArgsUsage: "BATCH_ID",
		Flags:     []cli.Flag{addrFlag},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("expected exactly one batch id", 2)
			}
			return withClient(c, func(client *grpc.Client) (map[string]interface{}, error) {
				return client.GetBatch(c.Context, c.Args().First())
			})
		},
	}
}

func confirmCommand() *cli.Command {
	return &cli.Command{
		Name:      "confirm",
		Usage:     "confirm attendance for a recipient",
		ArgsUsage: "RECIPIENT_ID",
		Flags: []cli.Flag{
			addrFlag,
			&cli.IntFlag{Name: "party-size", Usage: "0 keeps the stored party size"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("expected exactly one recipient id", 2)
			}
			return withClient(c, func(client *grpc.Client) (map[string]interface{}, error) {
				return client.ConfirmAttendance(c.Context, c.Args().First(), c.Int("party-size"))
			})
		},
	}
}

func withClient(c *cli.Context, call func(*grpc.Client) (map[string]interface{}, error)) error {
	client, err := grpc.Dial(c.String(addrFlag.Name))
	if err != nil {
		return err
	}
	defer client.Close()

	resp, err := call(client)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}
