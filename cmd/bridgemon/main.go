// Command bridgemon drives callbacks through a guest module and shows
// the dispatch traffic. Without -wasm it synthesizes a demo guest whose
// exports cover every cataloged signature.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wasmbridge/callbridge"
	"github.com/wasmbridge/callbridge/dispatch"
	"github.com/wasmbridge/callbridge/glue"
	"github.com/wasmbridge/callbridge/signature"
)

func main() {
	var (
		wasmFile    = flag.String("wasm", "", "Path to a guest wasm file (default: synthesized demo guest)")
		list        = flag.Bool("list", false, "List cataloged signatures and exit")
		verbose     = flag.Bool("v", false, "Verbose dispatch logging")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if *list {
		fmt.Println("Cataloged signatures (result + params, identity first):")
		for _, sig := range signature.Catalog() {
			fmt.Printf("  %-8s arity %d\n", sig.Code(), sig.Arity())
		}
		return
	}

	if *interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: -i requires a terminal")
			os.Exit(1)
		}
		if err := runInteractive(*wasmFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(*wasmFile, *verbose); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// demoSlots covers every cataloged signature with one trampoline each.
func demoSlots() []glue.Slot {
	return []glue.Slot{
		{Name: "tick", Signature: signature.VP},
		{Name: "progress", Signature: signature.IP},
		{Name: "notify", Params: []glue.ParamType{glue.Text}, Signature: signature.VPP},
		{Name: "gauge", Params: []glue.ParamType{glue.Float32}, Signature: signature.VPF},
		{Name: "log", Params: []glue.ParamType{glue.Int32, glue.Text}, Signature: signature.VPIP},
		{Name: "filter", Params: []glue.ParamType{glue.Int32}, Signature: signature.IPI},
		{Name: "change", Params: []glue.ParamType{glue.Int32, glue.Text, glue.Text, glue.Int64}, Signature: signature.VPIPPJH},
	}
}

// Demo guest memory layout: staged null-terminated strings.
const (
	textHello = 64
	textMain  = 96
	textUsers = 112
)

func demoGuest() ([]byte, error) {
	b := glue.NewBuilder()
	for _, s := range demoSlots() {
		b.AddSlot(s)
	}
	b.WithMemory(1)
	b.AddData(textHello, []byte("hello from the guest\x00"))
	b.AddData(textMain, []byte("main\x00"))
	b.AddData(textUsers, []byte("users\x00"))
	return b.Build()
}

func loadWasm(wasmFile string) ([]byte, error) {
	if wasmFile == "" {
		return demoGuest()
	}
	return os.ReadFile(wasmFile)
}

func run(wasmFile string, verbose bool) error {
	ctx := context.Background()

	log := zap.NewNop()
	if verbose {
		var err error
		log, err = zap.NewDevelopment()
		if err != nil {
			return err
		}
		defer log.Sync()
	}

	wasm, err := loadWasm(wasmFile)
	if err != nil {
		return fmt.Errorf("load guest: %w", err)
	}

	bridge, err := callbridge.New(ctx, &callbridge.Config{
		Logger: log,
		Tap: func(e dispatch.TapEvent) {
			status := "live"
			if e.Stale {
				status = "stale"
			}
			fmt.Printf("  [%s] identity=%d %s\n", e.Code, e.Identity, status)
		},
	})
	if err != nil {
		return err
	}
	defer bridge.Close(ctx)

	guest, err := bridge.LoadGuest(ctx, wasm, "demo")
	if err != nil {
		return err
	}

	tick, _ := bridge.OnTick(func() { fmt.Println("  tick fired") })
	progress, _ := bridge.OnProgress(func() int32 { return 75 })
	notify, _ := bridge.OnMessage(func(text string) { fmt.Printf("  message: %q\n", text) })
	change, _ := bridge.OnChange(func(op int32, db, table string, rowid int64) {
		fmt.Printf("  change: op=%d %s.%s rowid=%d\n", op, db, table, rowid)
	})

	fmt.Println("Dispatching through the guest:")
	if _, err := guest.Call(ctx, "tick", uint64(tick)); err != nil {
		return err
	}
	res, err := guest.Call(ctx, "progress", uint64(progress))
	if err != nil {
		return err
	}
	fmt.Printf("  progress reported %d\n", int32(res[0]))
	if _, err := guest.Call(ctx, "notify", uint64(notify), textHello); err != nil {
		return err
	}
	rowid := int64(-123456789012345)
	if _, err := guest.Call(ctx, "change",
		uint64(change), 23, textMain, textUsers, uint64(rowid)); err != nil {
		return err
	}

	fmt.Println("After release the same call drops silently:")
	bridge.Release(notify)
	if _, err := guest.Call(ctx, "notify", uint64(notify), textHello); err != nil {
		return err
	}

	fmt.Println("The zero identity never crosses the boundary:")
	if _, err := guest.Call(ctx, "tick", 0); err != nil {
		return err
	}

	fmt.Printf("Live identities: %d\n", bridge.Registry().Len())
	return nil
}
