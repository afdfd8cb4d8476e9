// arm-bridge-verify checks an arm-bridge YAML config and, optionally, sample
// sensor_msgs/JointState payloads before they are deployed.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/PetoAdam/homenavi/arm-bridge/internal/armbridge"
	"github.com/PetoAdam/homenavi/arm-bridge/internal/config"
	"github.com/PetoAdam/homenavi/arm-bridge/internal/prm"
	"github.com/PetoAdam/homenavi/arm-bridge/internal/recorder"
	"github.com/PetoAdam/homenavi/arm-bridge/internal/rosmsg"
)

func main() {
	configPath := flag.String("config", "", "path to an ARM_BRIDGE_CONFIG yaml file")
	flag.Parse()
	os.Exit(run(*configPath, flag.Args(), os.Stdout, os.Stderr))
}

// run returns the process exit code. Positional args are JointState samples.
func run(configPath string, samples []string, stdout, stderr io.Writer) int {
	failures := 0
	fail := func(format string, args ...any) {
		failures++
		fmt.Fprintf(stderr, "ERROR: "+format+"\n", args...)
	}

	if strings.TrimSpace(configPath) == "" && len(samples) == 0 {
		fail("nothing to verify: pass -config and/or sample files")
		return 1
	}

	if configPath != "" {
		f, err := config.LoadFile(configPath)
		if err != nil {
			fail("%v", err)
		} else {
			if err := f.Validate(); err != nil {
				fail("%s: %v", configPath, err)
			}
			for _, a := range f.Arms {
				if strings.TrimSpace(a.Name) == recorder.Name {
					fail("arm name %q is reserved", recorder.Name)
				}
				if err := config.ValidateArmName(strings.TrimSpace(a.Name)); err != nil {
					fail("%v", err)
					continue
				}
				fmt.Fprintf(stdout, "arm %s -> %s\n", a.Name, armbridge.Topic(a.Name))
			}
		}
	}

	for _, path := range samples {
		b, err := os.ReadFile(path)
		if err != nil {
			fail("read sample: %v", err)
			continue
		}
		js, err := rosmsg.Decode(b)
		if err != nil {
			fail("%s: %v", path, err)
			continue
		}
		s, err := prm.FromJointState(js)
		if err != nil {
			fail("%s: %v", path, err)
			continue
		}
		fmt.Fprintf(stdout, "sample %s: %d joints\n", path, s.JointCount())
	}

	if failures > 0 {
		return 1
	}
	fmt.Fprintln(stdout, "OK: arm-bridge verification passed")
	return 0
}
