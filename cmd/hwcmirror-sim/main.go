// Command hwcmirror-sim drives a randomized buffer submission workload
// through an Output whose updates feed a modeled Remote, verifying after
// every update that the two caches stay convergent. Optionally the update
// stream is also recorded to a trace file and replayed back at the end.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/ioutil"
	"math/rand"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/rcrowley/go-metrics"

	hwc "github.com/NezukoOS/frameworks-native"
	"github.com/NezukoOS/frameworks-native/buffer"
	"github.com/NezukoOS/frameworks-native/internal/tag"
	"github.com/NezukoOS/frameworks-native/log"
	"github.com/NezukoOS/frameworks-native/slotcache"
	"github.com/NezukoOS/frameworks-native/trace"
)

type InputConfig struct {
	Slots          int    `json:"slots"`
	Submissions    int    `json:"submissions"`
	Buffers        int    `json:"buffers"`
	ReleaseEvery   int    `json:"release-every"`
	Seed           int64  `json:"seed"`
	TraceFile      string `json:"trace-file"`
	TraceRotate    string `json:"trace-rotate"` // Size values 64k, 1m, 100000b.
	LogDestination string `json:"log-destination"`
	LogLevel       string `json:"log-level"`
}

func DefaultInputConfig() *InputConfig {
	return &InputConfig{
		Slots:          slotcache.DefaultSlots,
		Submissions:    10000,
		Buffers:        96,
		ReleaseEvery:   50,
		LogDestination: "stderr",
		LogLevel:       "INFO",
	}
}

const usage = `
Config values merge rules:
1) config file value overrides default
2) command line value overrides any
Options:
`

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "%s", usage)
		flag.PrintDefaults()
	}
}

type Config struct {
	Slots           int
	Submissions     int
	Buffers         int
	ReleaseEvery    int
	Seed            int64
	TraceFile       string
	TraceRotateSize int64
	LogDestination  io.Writer
	LogLevel        log.Level
}

func main() {
	conf := config()
	l := log.NewLogger(conf.LogLevel, conf.LogDestination)
	if tag.Debug {
		l.Warn("Using debug build. It has more runtime checks and large performance overhead.")
	}
	if conf.Seed == 0 {
		conf.Seed = time.Now().UnixNano()
	}
	l.Infof("Simulating %v submissions over %v buffers, %v slots, seed %v.",
		conf.Submissions, conf.Buffers, conf.Slots, conf.Seed)
	run(l, conf)
}

func run(l log.Logger, conf *Config) {
	rnd := rand.New(rand.NewSource(conf.Seed))
	reg := buffer.NewRegistry()
	remote := hwc.NewRemote(hwc.Config{Slots: conf.Slots})
	sink := hwc.UpdateSink(remote)

	var out *hwc.Output
	var tw *trace.Writer
	if conf.TraceFile != "" {
		var err error
		tw, err = trace.Open(l, trace.Config{
			Name:       conf.TraceFile,
			RotateSize: conf.TraceRotateSize,
			Snapshot:   func() []slotcache.Entry { return out.Cache().Snapshot() },
		})
		if err != nil {
			l.Fatal("Trace open error: ", err)
		}
		sink = hwc.Tee(remote, tw)
	}
	out = hwc.NewOutput(l, "sim", sink, hwc.Config{Slots: conf.Slots})

	presentTimer := metrics.NewRegisteredTimer("present", out.Metrics())
	bufs := make([]*buffer.Buffer, conf.Buffers)
	for i := range bufs {
		bufs[i] = reg.Register()
	}
	for i := 0; i < conf.Submissions; i++ {
		b := bufs[rnd.Intn(len(bufs))]
		start := time.Now()
		if _, err := out.Present(b); err != nil {
			l.Fatalf("Present %v error: %v", i, err)
		}
		presentTimer.UpdateSince(start)
		if err := remote.MirrorOf(out.Cache()); err != nil {
			l.Fatalf("Divergence after %v submissions: %v", i+1, err)
		}
		if conf.ReleaseEvery != 0 && i%conf.ReleaseEvery == conf.ReleaseEvery-1 {
			j := rnd.Intn(len(bufs))
			bufs[j].Release()
			bufs[j] = reg.Register()
		}
	}
	if tw != nil {
		if err := tw.Close(); err != nil {
			l.Fatal("Trace close error: ", err)
		}
		replayed := hwc.NewRemote(hwc.Config{Slots: conf.Slots})
		n, err := trace.ReplayFile(conf.TraceFile, replayed)
		if err != nil {
			l.Fatal("Trace replay error: ", err)
		}
		if err := replayed.MirrorOf(out.Cache()); err != nil {
			l.Fatalf("Replay of %v trace records diverged: %v", n, err)
		}
		l.Infof("Replayed %v trace records, convergent.", n)
	}
	l.Info("Convergent after all submissions.")
	metrics.WriteOnce(out.Metrics(), os.Stdout)
}

// config parses command flags, reads the config file if any, and returns
// the merged config.
func config() *Config {
	l := log.NewLogger(log.DebugLevel, os.Stderr)
	flg := parseFlags()
	fileConf := DefaultInputConfig()
	if flg.ConfigPath != "" {
		data, err := ioutil.ReadFile(flg.ConfigPath)
		if err != nil {
			l.Fatal("Config file read error: ", err)
		}
		err = json.Unmarshal(data, fileConf)
		if err != nil {
			l.Fatal("Config parse error: ", err)
		}
	}
	mergeConfigs(fileConf, &flg.InputConfig)
	return parseConfig(l, fileConf)
}

func parseConfig(l log.Logger, in *InputConfig) *Config {
	parsed := &Config{
		Slots:        in.Slots,
		Submissions:  in.Submissions,
		Buffers:      in.Buffers,
		ReleaseEvery: in.ReleaseEvery,
		Seed:         in.Seed,
		TraceFile:    in.TraceFile,
	}
	if in.Slots <= 0 {
		l.Fatal("Slot count must be positive.")
	}
	if in.Buffers <= 0 {
		l.Fatal("Buffer count must be positive.")
	}
	var err error
	parsed.LogDestination, err = logDestination(in.LogDestination)
	if err != nil {
		l.Fatal("Log destination open error: ", err)
	}
	parsed.LogLevel, err = log.LevelFromString(in.LogLevel)
	if err != nil {
		l.Fatal("Log level parse error: ", err)
	}
	if in.TraceRotate != "" {
		parsed.TraceRotateSize, err = parseSize(in.TraceRotate)
		if err != nil {
			l.Fatal("Trace rotate size parse error: ", err)
		}
	}
	return parsed
}

type Flags struct {
	ConfigPath string
	InputConfig
}

func parseFlags() Flags {
	var f Flags
	flag.StringVar(&f.ConfigPath, "config", "", "path to json config")

	def := DefaultInputConfig()
	usage := func(usage string, defVal interface{}) string {
		return usage + fmt.Sprintf(" (default %v)", defVal)
	}
	flag.IntVar(&f.Slots, "slots", 0, usage("remote cache capacity", def.Slots))
	flag.IntVar(&f.Submissions, "submissions", 0, usage("number of buffer submissions", def.Submissions))
	flag.IntVar(&f.Buffers, "buffers", 0, usage("number of distinct live buffers", def.Buffers))
	flag.IntVar(&f.ReleaseEvery, "release-every", 0, usage("destroy a random buffer every k submissions", def.ReleaseEvery))
	flag.Int64Var(&f.Seed, "seed", 0, "workload seed (default current time)")
	flag.StringVar(&f.TraceFile, "trace-file", "", "record updates to this trace file")
	flag.StringVar(&f.TraceRotate, "trace-rotate", "", "trace size to compact at: 64k, 1m")
	flag.StringVar(&f.LogDestination, "log-destination", "", usage("log destination: stderr, stdout or file path", def.LogDestination))
	flag.StringVar(&f.LogLevel, "log-level", "", usage("log level: DEBUG, INFO, WARN, ERROR, FATAL", def.LogLevel))
	flag.Parse()
	return f
}

func parseSize(s string) (size int64, err error) {
	if len(s) < 2 {
		err = errors.New("invalid size format")
		return
	}
	sep := len(s) - 1
	sizeStr := s[:sep]
	exponentStr := s[sep:]
	var exponent uint32
	switch strings.ToLower(exponentStr) {
	case "b":
		exponent = 0
	case "k":
		exponent = 10
	case "m":
		exponent = 20
	case "g":
		exponent = 30
	default:
		err = errors.New("invalid exponent, only 'b', 'k', 'm', 'g' allowed")
		return
	}
	size, err = strconv.ParseInt(sizeStr, 10, 31)
	if err != nil {
		err = fmt.Errorf("size parse error: %s", err)
		return
	}
	size <<= exponent
	return
}

func logDestination(dest string) (w io.Writer, err error) {
	switch strings.ToLower(dest) {
	case "stderr":
		w = os.Stderr
	case "stdout":
		w = os.Stdout
	default:
		w, err = os.OpenFile(dest, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0664)
	}
	return
}

// mergeConfigs overwrites def values with non zero override values.
func mergeConfigs(def, override *InputConfig) {
	defVal := reflect.ValueOf(def).Elem()
	overrideVal := reflect.ValueOf(override).Elem()
	for i, end := 0, defVal.NumField(); i < end; i++ {
		overrideVal := overrideVal.Field(i)
		isZeroVal := overrideVal.Interface() == reflect.Zero(overrideVal.Type()).Interface()
		if !isZeroVal {
			defVal.Field(i).Set(overrideVal)
		}
	}
}
