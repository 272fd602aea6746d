package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/infrastructure/logging"
	"github.com/iot-for-tillgenglighet/energy-dashboard/pkg/energyclient"
)

const usage = `usage: energyctl [-api URL] <command> [flags]

commands:
  health                      check that the API and its database are up
  watch  -class ID [-every D] poll the hourly consumption of a class
  ingest -eui EUI -kwh N      record a reading (or -file F with a JSON array)
`

func main() {
	log := logging.NewLogger()

	global := flag.NewFlagSet("energyctl", flag.ExitOnError)
	api := global.String("api", envOr("ENERGY_API_URL", "http://localhost:5002"), "base URL of the energy dashboard")
	prefix := global.String("prefix", envOr("API_PREFIX", "/api/v1"), "route prefix of the API")
	global.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	global.Parse(os.Args[1:])

	if global.NArg() == 0 {
		global.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := energyclient.New(*api, energyclient.WithPrefix(*prefix), energyclient.WithRetries(2))

	command, args := global.Arg(0), global.Args()[1:]

	var err error
	switch command {
	case "health":
		err = health(ctx, client)
	case "watch":
		err = watch(ctx, client, log, args)
	case "ingest":
		err = ingest(ctx, client, args)
	default:
		global.Usage()
		os.Exit(2)
	}

	if err != nil {
		log.Fatalf("%s failed: %s", command, err.Error())
	}
}

func health(ctx context.Context, client *energyclient.Client) error {
	status, err := client.Health(ctx)
	if err != nil {
		return err
	}

	if err = printJSON(os.Stdout, status); err != nil {
		return err
	}

	if status.Database != "up" {
		return fmt.Errorf("database is %s", status.Database)
	}
	return nil
}

func watch(ctx context.Context, client *energyclient.Client, log logging.Logger, args []string) error {
	flags := flag.NewFlagSet("watch", flag.ExitOnError)
	classID := flags.Uint("class", 0, "class to watch")
	every := flags.Duration("every", 30*time.Second, "poll interval")
	flags.Parse(args)

	if *classID == 0 {
		return fmt.Errorf("-class is required")
	}

	poller := energyclient.NewPoller(*every, func(ctx context.Context) error {
		date := time.Now().Format("2006-01-02")

		points, err := client.HourlyClassConsumption(ctx, uint(*classID), date)
		if err != nil {
			return err
		}

		unread, err := client.UnreadAlertCount(ctx)
		if err != nil {
			return err
		}

		return printJSON(os.Stdout, map[string]interface{}{
			"date":         date,
			"hourly":       points,
			"unreadAlerts": unread,
		})
	}, func(err error) {
		log.Errorf("poll failed: %s", err.Error())
	})

	poller.Run(ctx)
	return nil
}

func ingest(ctx context.Context, client *energyclient.Client, args []string) error {
	flags := flag.NewFlagSet("ingest", flag.ExitOnError)
	eui := flags.String("eui", "", "EUI of the device")
	kwh := flags.Float64("kwh", -1, "consumption in kWh")
	temperature := flags.String("temperature", "", "temperature in °C, left out when empty")
	file := flags.String("file", "", "JSON file with an array of readings, - for stdin")
	flags.Parse(args)

	if *file != "" {
		readings, err := readReadings(*file)
		if err != nil {
			return err
		}

		result, err := client.IngestBulk(ctx, readings)
		if result != nil {
			printJSON(os.Stdout, result)
		}
		return err
	}

	if *eui == "" || *kwh < 0 {
		return fmt.Errorf("-eui and -kwh are required")
	}

	reading := energyclient.Reading{DeviceEUI: *eui, Consumption: *kwh}
	if *temperature != "" {
		t, err := strconv.ParseFloat(*temperature, 64)
		if err != nil {
			return fmt.Errorf("invalid temperature %q", *temperature)
		}
		reading.Temperature = &t
	}

	result, err := client.Ingest(ctx, reading)
	if err != nil {
		return err
	}
	return printJSON(os.Stdout, result)
}

func readReadings(file string) ([]energyclient.Reading, error) {
	var r io.Reader = os.Stdin
	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	readings := []energyclient.Reading{}
	if err := json.NewDecoder(r).Decode(&readings); err != nil {
		return nil, fmt.Errorf("failed to read readings from %s: %w", file, err)
	}
	return readings, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}
