/*Package shell implements the interactive operations shell for stepper
motor controllers.

One operator issues commands one at a time.  Each line is tokenized,
validated, and parsed into a typed command; the named device is resolved
through the injected Resolver; and the matching capability is invoked.  The
two motion commands (move, set_target_position) are asynchronous: the shell
arms the Notifier's completion signal, hands it to the driver call, and the
call returns as soon as the driver accepts the operation.  Completion is
reported later, out of band, by the Notifier's listener.

Validation failures and unknown devices are reported before any hardware
call.  Driver failures are reported with their raw error code and never
retried; the shell is a thin reporting layer over driver semantics.
*/
package shell

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"

	"github.jpl.nasa.gov/bdube/stepsh/notify"
	"github.jpl.nasa.gov/bdube/stepsh/stepper"
	"github.jpl.nasa.gov/bdube/stepsh/util"
)

// Resolver looks up stepper devices by operator-facing name.  Lookups happen
// on every command; the shell caches nothing.
type Resolver interface {
	// Lookup returns the device registered under name, or an error wrapping
	// stepper.ErrDeviceNotFound
	Lookup(name string) (stepper.Stepper, error)

	// Names returns the registered device names, used for completion
	Names() []string
}

// Shell dispatches operator commands against resolved stepper devices.
type Shell struct {
	resolver Resolver
	notifier *notify.Notifier
	out      io.Writer
}

// New returns a Shell writing its output to out.
func New(resolver Resolver, notifier *notify.Notifier, out io.Writer) *Shell {
	if out == nil {
		out = os.Stdout
	}
	return &Shell{resolver: resolver, notifier: notifier, out: out}
}

func (s *Shell) printf(format string, args ...interface{}) {
	fmt.Fprintf(s.out, format+"\n", args...)
}

// reportCapability relays a driver result to the operator.  Raw driver codes
// are printed verbatim.
func (s *Shell) reportCapability(err error) error {
	if err == nil {
		return nil
	}
	var code stepper.Error
	if errors.As(err, &code) {
		s.printf("Error: %d", code.Code())
	} else {
		s.printf("Error: %v", err)
	}
	return err
}

// Dispatch parses and executes a single command line.  All failures are
// reported to the operator; the returned error mirrors what was reported so
// callers can observe outcomes programmatically.
func (s *Shell) Dispatch(line string) error {
	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		return nil
	}
	name, args := tokens[0], tokens[1:]
	d, ok := descriptor(name)
	if !ok {
		err := fmt.Errorf("%w: %s", ErrUnknownCommand, name)
		s.printf("%v", err)
		return err
	}
	if len(args) < d.MinArgs {
		err := fmt.Errorf("%w: %s takes %d arguments: %s", ErrInvalidArgument, name, d.MinArgs, d.Help)
		s.printf("%v", err)
		return err
	}
	cmd, err := parse(name, args)
	if err != nil {
		s.printf("%v", err)
		return err
	}
	dev, err := s.resolver.Lookup(cmd.device())
	if err != nil {
		s.printf("Stepper device %s not found", cmd.device())
		return err
	}
	return s.execute(dev, cmd)
}

// arm readies the completion signal for an asynchronous command.  If the
// listener cannot be started the command proceeds without notification and
// the degradation is reported.
func (s *Shell) arm() *notify.Signal {
	if err := s.notifier.EnsureListening(); err != nil {
		s.printf("Warning: %v; completion will not be reported", err)
		return nil
	}
	return s.notifier.Arm()
}

func (s *Shell) execute(dev stepper.Stepper, cmd command) error {
	switch c := cmd.(type) {
	case enableCmd:
		return s.reportCapability(dev.Enable(c.on))
	case moveCmd:
		return s.reportCapability(dev.Move(c.steps, s.arm()))
	case setMaxVelocityCmd:
		return s.reportCapability(dev.SetMaxVelocity(c.velocity))
	case setMicroStepResCmd:
		return s.reportCapability(dev.SetMicroStepRes(c.res))
	case setActualPositionCmd:
		return s.reportCapability(dev.SetActualPosition(c.pos))
	case setTargetPositionCmd:
		return s.reportCapability(dev.SetTargetPosition(c.pos, s.arm()))
	case constantVelocityCmd:
		return s.reportCapability(dev.EnableConstantVelocityMode(c.dir, c.velocity))
	case infoCmd:
		s.info(dev, c.dev)
		return nil
	}
	// unreachable: parse only produces the kinds above
	return fmt.Errorf("%w: %T", ErrUnknownCommand, cmd)
}

// info runs the three state queries independently; one query failing is a
// warning, not a reason to skip the others.
func (s *Shell) info(dev stepper.Stepper, name string) {
	s.printf("Stepper Info:")
	s.printf("Device: %s", name)

	pos, err := dev.GetActualPosition()
	if err != nil {
		s.warnQuery("actual position", err)
	} else {
		s.printf("Actual Position: %d", pos)
	}

	res, err := dev.GetMicroStepRes()
	if err != nil {
		s.warnQuery("micro-step resolution", err)
	} else {
		s.printf("Micro-step Resolution: %d", int(res))
	}

	moving, err := dev.IsMoving()
	if err != nil {
		s.warnQuery("motion state", err)
	} else {
		yn := "No"
		if moving {
			yn = "Yes"
		}
		s.printf("Is Moving: %s", yn)
	}
}

func (s *Shell) warnQuery(what string, err error) {
	var code stepper.Error
	if errors.As(err, &code) {
		s.printf("Warning: failed to get %s: %d", what, code.Code())
	} else {
		s.printf("Warning: failed to get %s: %v", what, err)
	}
}

func (s *Shell) help() {
	s.printf("Stepper motor commands:")
	for _, d := range Descriptors {
		s.printf("  %-30s %s", d.Name, d.Help)
	}
	s.printf("  %-30s %s", "devices", "list registered devices")
	s.printf("  %-30s %s", "help", "this text")
	s.printf("  %-30s %s", "exit", "leave the shell")
	s.printf("valid micro-step resolutions: %s", util.IntSliceToCSV(stepper.Resolutions()))
}

// completer builds the prompt completer; device names are sourced
// dynamically so registry contents are always current.
func (s *Shell) completer() *readline.PrefixCompleter {
	devices := readline.PcItemDynamic(func(string) []string {
		return s.resolver.Names()
	})
	items := make([]readline.PrefixCompleterInterface, 0, len(Descriptors)+3)
	for _, d := range Descriptors {
		items = append(items, readline.PcItem(d.Name, devices))
	}
	items = append(items,
		readline.PcItem("devices"),
		readline.PcItem("help"),
		readline.PcItem("exit"))
	return readline.NewPrefixCompleter(items...)
}

// Run reads operator commands until EOF or exit.  Dispatch failures are
// reported and the loop continues; no command failure exits the shell.
func (s *Shell) Run() error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "stepper> ",
		AutoComplete:    s.completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err != nil { // io.EOF
			return nil
		}
		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		case "help":
			s.help()
			continue
		case "devices":
			s.printf("%s", strings.Join(s.resolver.Names(), "\n"))
			continue
		}
		s.Dispatch(line) // already reported
	}
}
