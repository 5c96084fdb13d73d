package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/theckman/yacspin"

	yml "gopkg.in/yaml.v2"

	"github.jpl.nasa.gov/bdube/stepsh/generichttp"
	httpstepper "github.jpl.nasa.gov/bdube/stepsh/generichttp/stepper"
	"github.jpl.nasa.gov/bdube/stepsh/notify"
	"github.jpl.nasa.gov/bdube/stepsh/registry"
	"github.jpl.nasa.gov/bdube/stepsh/shell"
)

var (
	// Version is the version number.  Typically injected via ldflags with git build
	Version = "1"

	// ConfigFileName is what it sounds like
	ConfigFileName = "stepsh.yml"
	k              = koanf.New(".")
)

func setupconfig() {
	k.Load(structs.Provider(registry.Config{
		TMC5160s: []registry.TMC5160Setup{},
		Sims:     []registry.SimSetup{}}, "koanf"), nil)
	if err := k.Load(file.Provider(ConfigFileName), yaml.Parser()); err != nil {
		errtxt := err.Error()
		if !strings.Contains(errtxt, "no such") { // file missing, who cares
			log.Fatalf("error loading config: %v", err)
		}
	}
}

func root() {
	str := `stepsh is an interactive shell for stepper motor controllers.
Motors are addressed by name; commands move them, configure them, and
query their state.  Moves are asynchronous and completion is reported
when the motor arrives.

Usage:
	stepsh <command>

Commands:
	run
	help
	mkconf
	conf
	version`
	fmt.Println(str)
}

func help() {
	str := `stepsh is amenable to configuration via its .yaml file.  For a primer on YAML, see
https://yaml.org/start.html

Without a configuration, the shell starts with no devices and every
command will report that the device is not found.

No two devices can have the same name.

If http is set to a listen address, every device is also served over
HTTP under /<name>/, e.g. GET /motor1/pos.

Device types:
- TMC5160 (tmc5160s)
	> Trinamic TMC5160 via its single-wire UART, either a local serial
	  port (serial: true, addr: /dev/ttyACM0) or a serial bridge
	  (serial: false, addr: 192.168.100.123:2006)
- Simulated (sims)
	> a software motor, useful for trying the shell without hardware

Shell commands (device is always the first argument):
	enable <device> on|off
	move <device> <steps>
	set_max_velocity <device> <velocity>
	set_micro_step_res <device> <resolution>
	set_actual_position <device> <position>
	set_target_position <device> <position>
	enable_constant_velocity_mode <device> <direction> <velocity>
	info <device>`
	fmt.Println(str)
}

func mkconf() {
	c := registry.Config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	f, err := os.Create(ConfigFileName)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	err = yml.NewEncoder(f).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func printconf() {
	c := registry.Config{}
	k.Unmarshal("", &c)
	err := yml.NewEncoder(os.Stdout).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func pversion() {
	fmt.Printf("stepsh version %v\n", Version)
}

// probe checks that each registered device answers a query, so bad
// addresses surface at startup instead of on the first command.
func probe(reg *registry.Registry) {
	cfg := yacspin.Config{
		Frequency:       100 * time.Millisecond,
		CharSet:         yacspin.CharSets[59],
		Suffix:          " probing devices",
		SuffixAutoColon: true,
		StopCharacter:   "done",
	}
	spinner, err := yacspin.New(cfg)
	if err != nil {
		// cosmetic only, probe without it
		spinner = nil
	}
	if spinner != nil {
		spinner.Start()
	}
	for _, name := range reg.Names() {
		if spinner != nil {
			spinner.Message(name)
		}
		dev, err := reg.Lookup(name)
		if err != nil {
			continue
		}
		if _, err := dev.IsMoving(); err != nil {
			log.Printf("Warning: device %s did not answer: %v", name, err)
		}
	}
	if spinner != nil {
		spinner.Stop()
	}
}

func report(result int) {
	switch result {
	case notify.StepsCompleted:
		fmt.Println("Stepper: all steps completed")
	case notify.Stalled:
		fmt.Println("Stepper: stall detected")
	default:
		fmt.Printf("Stepper: event %d\n", result)
	}
}

func serveHTTP(addr string, reg *registry.Registry) {
	router := chi.NewRouter()
	for _, name := range reg.Names() {
		dev, err := reg.Lookup(name)
		if err != nil {
			continue
		}
		h := httpstepper.NewHTTPStepper(dev)
		sub := chi.NewRouter()
		h.RT().Bind(sub)
		sub.Method(http.MethodGet, "/list-of-routes", generichttp.ListRoutes(h))
		router.Mount("/"+name, sub)
	}
	log.Println("now listening for requests at ", addr)
	log.Fatal(http.ListenAndServe(addr, router))
}

func run() {
	c := registry.Config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	reg, err := c.BuildRegistry()
	if err != nil {
		log.Fatal(err)
	}
	probe(reg)
	if c.HTTP != "" {
		go serveHTTP(c.HTTP, reg)
	}
	notifier := notify.New(report)
	defer notifier.Close()
	sh := shell.New(reg, notifier, os.Stdout)
	if err := sh.Run(); err != nil {
		log.Fatal(err)
	}
}

func main() {
	var cmd string
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	setupconfig()
	cmd = args[1]
	cmd = strings.ToLower(cmd)
	switch cmd {
	case "help":
		help()
		return
	case "mkconf":
		mkconf()
		return
	case "conf":
		printconf()
		return
	case "run":
		run()
		return
	case "version":
		pversion()
		return
	default:
		log.Fatal("unknown command")
	}
}
