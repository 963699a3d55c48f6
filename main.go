// keyhold listens on evdev keyboards for a global key combination and
// reports press/release edges. It is also the smoke-test harness for the
// shortcut engine: -list and -check inspect device access, -test waits for
// one trigger.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"keyhold/device"
	"keyhold/log"
	"keyhold/shortcut"
)

var version = "dev"

var shutdownOnce sync.Once

func main() {
	keyFlag := flag.String("key", "<f12>", "Shortcut combination, e.g. ctrl+shift+d or <f12>")
	deviceFlag := flag.String("device", "", "Capture only this input device path (default: all accessible keyboards)")
	logPathFlag := flag.String("logpath", "", "Log directory path (default: OS cache location)")
	verboseFlag := flag.Bool("verbose", false, "Enable debug logging")
	listFlag := flag.Bool("list", false, "List accessible keyboard devices and exit")
	checkFlag := flag.Bool("check", false, "Check input device access and exit")
	testFlag := flag.Bool("test", false, "Wait up to 10s for one shortcut trigger and exit")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("keyhold %s\n", version)
		return
	}

	log.SetVerbose(*verboseFlag)

	if *listFlag {
		listKeyboards()
		return
	}
	if *checkFlag {
		os.Exit(runCheck())
	}

	log.SetupFile(*logPathFlag)

	engine := shortcut.New(shortcut.Config{
		Combination:  *keyFlag,
		DevicePath:   *deviceFlag,
		OnActivate:   func() { fmt.Println("ACTIVATED") },
		OnDeactivate: func() { fmt.Println("RELEASED") },
	})

	if *testFlag {
		os.Exit(runTriggerTest(engine, *keyFlag))
	}

	if err := engine.Start(); err != nil {
		log.Errorf("start failed: %v", err)
		fmt.Fprintln(os.Stderr, "keyhold: no usable keyboard devices (is the user in the 'input' group?)")
		os.Exit(1)
	}

	fmt.Printf("keyhold %s listening for %s (Ctrl+C to exit)\n", version, *keyFlag)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGUSR1)
	for sig := range sigCh {
		if sig == syscall.SIGUSR1 {
			dumpStatus(engine)
			continue
		}
		gracefulShutdown(engine)
	}
}

func gracefulShutdown(engine *shortcut.Engine) {
	shutdownOnce.Do(func() {
		engine.Stop()
		log.Close()
		os.Exit(0)
	})
}

func listKeyboards() {
	keyboards := device.ListKeyboards()
	if len(keyboards) == 0 {
		fmt.Println("No accessible keyboard devices found.")
		fmt.Println("Run: sudo usermod -aG input $USER, then re-login.")
		return
	}
	for _, kb := range keyboards {
		fmt.Printf("%s\t%s\n", kb.Path, kb.Name)
	}
}

func runCheck() int {
	msg, err := device.Diagnose()
	if err != nil {
		fmt.Printf("FAIL: %v\n", err)
		return 1
	}
	fmt.Printf("PASS: %s\n", msg)
	return 0
}

// runTriggerTest starts the engine with a temporary callback and waits up
// to 10 seconds for one activation.
func runTriggerTest(engine *shortcut.Engine, key string) int {
	triggered := make(chan struct{}, 1)
	engine.SetCallbacks(func() {
		select {
		case triggered <- struct{}{}:
		default:
		}
	}, nil)

	if err := engine.Start(); err != nil {
		fmt.Printf("FAIL: %v\n", err)
		return 1
	}
	defer engine.Stop()

	fmt.Printf("Press %s within 10 seconds...\n", key)
	select {
	case <-triggered:
		fmt.Println("PASS: shortcut detected")
		return 0
	case <-time.After(10 * time.Second):
		fmt.Println("FAIL: timeout waiting for shortcut")
		return 1
	}
}

func dumpStatus(engine *shortcut.Engine) {
	data, err := json.Marshal(engine.Status())
	if err != nil {
		log.Errorf("status dump: %v", err)
		return
	}
	fmt.Println(string(data))
}
