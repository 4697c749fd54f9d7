package main

import (
	"flag"
	"fmt"
	"log"
	"math/big"
	"os"
	ossignal "os/signal"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/thn-ecu/lampdiag/canbus"
	"github.com/thn-ecu/lampdiag/codec"
	"github.com/thn-ecu/lampdiag/config"
	"github.com/thn-ecu/lampdiag/export"
	"github.com/thn-ecu/lampdiag/logstream"
	"github.com/thn-ecu/lampdiag/monitor"
	"github.com/thn-ecu/lampdiag/sequence"
	"github.com/thn-ecu/lampdiag/signal"
	"github.com/thn-ecu/lampdiag/trigger"
	"github.com/thn-ecu/lampdiag/uds"
)

const usage = `usage: lampdiag [-config file] <command> [options]

commands:
  read      read and decode the headlamp identifiers of one unit
  seq       send a canned frame sequence
  gear      send one gear lever state frame
  send      send a frame with wildcard expansion
  scan      run the option code auto-search
  trigger   run the trigger finder
`

func main() {
	configPath := flag.String("config", "", "path to YAML configuration")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.Load(*configPath)
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}
	logstream.InitAndRotate(cfg.Log.Dir, cfg.Log.Prefix)

	open := func() (canbus.Bus, error) {
		return canbus.Open(cfg.Backend, cfg.Channel, cfg.Bitrate)
	}

	var err error
	switch cmd, args := flag.Arg(0), flag.Args()[1:]; cmd {
	case "read":
		err = runRead(open, args)
	case "seq":
		err = runSeq(open, args)
	case "gear":
		err = runGear(open, args)
	case "send":
		err = runSend(open, args)
	case "scan":
		err = runScan(open, args)
	case "trigger":
		err = runTrigger(open, cfg, args)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func parseHexByte(text, what string) (byte, error) {
	v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToUpper(text), "0X"), 16, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", what, text)
	}
	return byte(v), nil
}

func parseDID(text string) (uint16, error) {
	v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToUpper(text), "0X"), 16, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid data identifier %q", text)
	}
	return uint16(v), nil
}

func runRead(open canbus.OpenFunc, args []string) error {
	fs := flag.NewFlagSet("read", flag.ExitOnError)
	profileName := fs.String("profile", "links", "diagnostic profile (links/rechts)")
	didHex := fs.String("did", "", "single data identifier to read (hex), default: all known")
	fs.Parse(args)

	profile, err := uds.ProfileByName(*profileName)
	if err != nil {
		return err
	}

	bus, err := open()
	if err != nil {
		return err
	}
	defer bus.Close()

	if *didHex != "" {
		did, err := parseDID(*didHex)
		if err != nil {
			return err
		}
		payload, err := uds.ReadDataByIdentifier(bus, profile, did, uds.DefaultTimeout)
		if err != nil {
			return err
		}
		fmt.Printf("DID 0x%04X: %s\n", did, canbus.FormatBytes(payload))
		return nil
	}

	ledPayload, err := uds.ReadDataByIdentifierRetry(bus, profile, uds.DIDLEDStatus, uds.DefaultTimeout, 3)
	if err != nil {
		return err
	}
	percents, currents := signal.DecodeLED(ledPayload)
	for i := 0; i < signal.LEDChannels; i++ {
		fmt.Printf("LED %-2d  %3d %%  %5d mA\n", i+1, percents[i], currents[i])
	}

	ahlPayload, err := uds.ReadDataByIdentifierRetry(bus, profile, uds.DIDAHLPosition, uds.DefaultTimeout, 3)
	if err != nil {
		return err
	}
	fmt.Printf("AHL     %.2f Grad\n", signal.DecodeAHL(ahlPayload))

	lwrPayload, err := uds.ReadDataByIdentifierRetry(bus, profile, uds.DIDLWRPosition, uds.DefaultTimeout, 3)
	if err != nil {
		return err
	}
	fmt.Printf("LWR     %.2f Grad\n", signal.DecodeLWR(lwrPayload))
	return nil
}

func runSeq(open canbus.OpenFunc, args []string) error {
	fs := flag.NewFlagSet("seq", flag.ExitOnError)
	name := fs.String("name", "", "sequence name (workshop/operation/headlight/brake)")
	delayMs := fs.Int("delay", 20, "inter-frame delay in ms")
	rxMs := fs.Int("rx", 200, "response window in ms")
	fs.Parse(args)

	steps, found := sequence.Sequences[*name]
	if !found {
		return fmt.Errorf("unknown sequence %q", *name)
	}

	queue := logstream.NewQueue()
	var cancel atomic.Bool
	interruptTo(&cancel)

	runner := &sequence.Runner{
		Open:     open,
		Log:      queue,
		Delay:    time.Duration(*delayMs) * time.Millisecond,
		RxWindow: time.Duration(*rxMs) * time.Millisecond,
		Cancel:   &cancel,
	}
	ok, err := runner.Send(steps)
	printQueue(queue)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("Abgebrochen.")
	}
	return nil
}

func runGear(open canbus.OpenFunc, args []string) error {
	fs := flag.NewFlagSet("gear", flag.ExitOnError)
	action := fs.String("action", "rest", "gear lever action or state name")
	fs.Parse(args)

	state, err := sequence.GearStateByAction(*action)
	if err != nil {
		return err
	}

	queue := logstream.NewQueue()
	runner := &sequence.Runner{Open: open, Log: queue}
	ok, err := runner.Send([]sequence.Step{state.Step})
	printQueue(queue)
	if err != nil {
		return err
	}
	if ok {
		fmt.Printf("Gesendet: %s\n", state.Name)
	}
	return nil
}

func runSend(open canbus.OpenFunc, args []string) error {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	idHex := fs.String("id", "", "arbitration id (hex)")
	fields := fs.String("data", ",,,,,,,", "8 comma-separated byte fields; empty or ? is a wildcard")
	delayMs := fs.Int("delay", 20, "inter-frame delay in ms")
	rxMs := fs.Int("rx", 200, "response window in ms")
	confirm := fs.Int("confirm", 4096, "refuse more variants than this without -yes")
	yes := fs.Bool("yes", false, "send any number of variants without asking")
	fs.Parse(args)

	id, err := codec.ParseCANID(*idHex)
	if err != nil {
		return err
	}
	tokens, total, err := codec.TokensFromFields(strings.Split(*fields, ","))
	if err != nil {
		return err
	}
	if !*yes && total.Cmp(big.NewInt(int64(*confirm))) > 0 {
		return fmt.Errorf("%s variants exceed the confirmation threshold %d; re-run with -yes", total, *confirm)
	}
	fmt.Printf("Sende %s Varianten an ID=0x%03X\n", total, id)

	queue := logstream.NewQueue()
	var cancel atomic.Bool
	interruptTo(&cancel)

	runner := &sequence.Runner{
		Open:     open,
		Log:      queue,
		Delay:    time.Duration(*delayMs) * time.Millisecond,
		RxWindow: time.Duration(*rxMs) * time.Millisecond,
		Cancel:   &cancel,
	}
	ok, err := runner.SendCombinations(id, tokens)
	printQueue(queue)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("Abgebrochen.")
	}
	return nil
}

func runScan(open canbus.OpenFunc, args []string) error {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	profileName := fs.String("profile", "links", "diagnostic profile (links/rechts)")
	timeout := fs.Duration("timeout", time.Second, "per-entry response window")
	out := fs.String("out", "", "write results as semicolon CSV to this file")
	fs.Parse(args)

	profile, err := uds.ProfileByName(*profileName)
	if err != nil {
		return err
	}
	params := sequence.ScanParams{
		TxID:    profile.TxID,
		RxID:    profile.RxID,
		EAReq:   profile.EAReq,
		EARsp:   profile.EARsp,
		Timeout: *timeout,
	}

	queue := logstream.NewQueue()
	var cancel atomic.Bool
	interruptTo(&cancel)

	results, err := sequence.Scan(open, params, queue, &cancel)
	printQueue(queue)
	if err != nil {
		return err
	}
	for _, r := range results {
		fmt.Printf("%-5s %-42s %-8s %s\n", r.Code, r.Description, r.Status, strings.Join(r.Responses, " | "))
	}

	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := export.WriteResults(f, results); err != nil {
			return err
		}
		fmt.Printf("Ergebnisse exportiert nach %s\n", *out)
	}
	return nil
}

func runTrigger(open canbus.OpenFunc, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("trigger", flag.ExitOnError)
	profileName := fs.String("profile", "links", "diagnostic profile (links/rechts)")
	target := fs.String("target", trigger.TargetLEDAnyOn, "detector target")
	udsDid := fs.String("uds-did", "", "UDS_CUSTOM: data identifier (hex)")
	udsOp := fs.String("uds-op", ">", "UDS_CUSTOM: comparison operator")
	udsTh := fs.Float64("uds-th", 0, "UDS_CUSTOM: threshold")
	udsIdx := fs.Int("uds-index", 0, "UDS_CUSTOM: payload byte index")
	canID := fs.String("can-id", "", "CAN_BIT: arbitration id (hex)")
	canByte := fs.Int("can-byte", -1, "CAN_BIT: byte index")
	canMask := fs.String("can-mask", "", "CAN_BIT: mask (hex)")
	canValue := fs.String("can-value", "", "CAN_BIT: value (hex)")
	ahlDelta := fs.Float64("ahl-delta", 0, "AHL_MOVE: minimum angle change")
	lwrDelta := fs.Float64("lwr-delta", 0, "LWR_MOVE: minimum angle change")
	fs.Parse(args)

	opts := trigger.Options{
		Profile:      *profileName,
		Target:       *target,
		UDSOp:        *udsOp,
		UDSThreshold: *udsTh,
		UDSIndex:     *udsIdx,
		AHLDelta:     *ahlDelta,
		LWRDelta:     *lwrDelta,
	}
	if *udsDid != "" {
		did, err := parseDID(*udsDid)
		if err != nil {
			return err
		}
		opts.UDSDid = &did
	}
	if *canID != "" {
		id, err := codec.ParseCANID(*canID)
		if err != nil {
			return err
		}
		opts.CANID = &id
	}
	if *canByte >= 0 {
		opts.CANByte = canByte
	}
	if *canMask != "" {
		mask, err := parseHexByte(*canMask, "mask")
		if err != nil {
			return err
		}
		opts.CANMask = &mask
	}
	if *canValue != "" {
		value, err := parseHexByte(*canValue, "value")
		if err != nil {
			return err
		}
		opts.CANValue = &value
	}

	queue := logstream.NewQueue()
	runner, err := trigger.NewRunner(open, queue, opts)
	if err != nil {
		return err
	}

	if cfg.Monitor.Enabled {
		go func() {
			if err := monitor.New(queue).ListenAndServe(cfg.Monitor.ListenAddr); err != nil {
				log.Printf("monitor: %v", err)
			}
		}()
	}

	if err := runner.Start(); err != nil {
		return err
	}
	fmt.Printf("Trigger Finder läuft (%s). Strg+C beendet.\n", *target)

	interrupted := make(chan os.Signal, 1)
	ossignal.Notify(interrupted, os.Interrupt, syscall.SIGTERM)
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	status := time.NewTicker(2 * time.Second)
	defer status.Stop()
	for runner.IsRunning() {
		select {
		case <-interrupted:
			runner.Stop()
			runner.Wait()
		case <-status.C:
			if ids := runner.ActiveIDs(); len(ids) > 0 {
				sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
				parts := make([]string, len(ids))
				for i, id := range ids {
					parts[i] = fmt.Sprintf("0x%03X", id)
				}
				fmt.Printf("Aktive IDs (%d): %s\n", len(ids), strings.Join(parts, " "))
			}
		case <-ticker.C:
		}
		// With the monitor enabled the websocket side owns the queue.
		if !cfg.Monitor.Enabled {
			printQueue(queue)
		}
	}
	if !cfg.Monitor.Enabled {
		printQueue(queue)
	}
	return nil
}

func printQueue(queue *logstream.Queue) {
	for _, line := range queue.Drain() {
		fmt.Println(line)
	}
}

// interruptTo flips the cancel flag on SIGINT/SIGTERM.
func interruptTo(cancel *atomic.Bool) {
	ch := make(chan os.Signal, 1)
	ossignal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ch
		cancel.Store(true)
	}()
}
