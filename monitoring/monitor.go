// Package monitoring serves the state of a regression over HTTP while it
// runs.
package monitoring

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"

	// Enable profiling
	_ "net/http/pprof"
	"os"
	"runtime/pprof"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/flashverif/monitoring/web"
	"github.com/sarchlab/flashverif/scenario"
	"github.com/sarchlab/flashverif/sim"
)

// RunSource is what the monitor watches. A scenario.Runner is a RunSource.
type RunSource interface {
	CurrentTime() sim.VTimeInSec
	Progress() scenario.Progress
	Current() *scenario.Env
}

// Monitor turns a regression into a server that reports its progress and
// lets users inspect the run in progress.
type Monitor struct {
	portNumber      int
	profileDuration time.Duration
	startTime       time.Time

	lock   sync.Mutex
	source RunSource
	server *http.Server
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{
		profileDuration: time.Second,
		startTime:       time.Now(),
	}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithProfileDuration sets how long the profile endpoint samples the CPU.
func (m *Monitor) WithProfileDuration(d time.Duration) *Monitor {
	m.profileDuration = d
	return m
}

// RegisterRunner sets the regression to watch.
func (m *Monitor) RegisterRunner(s RunSource) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.source = s
}

// Handler returns the routes of the monitor.
func (m *Monitor) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/list_components", m.listComponents)
	r.HandleFunc("/api/component/{name}", m.listComponentDetails)
	r.HandleFunc("/api/field/{json}", m.listFieldValue)
	r.HandleFunc("/api/hangdetector/buffers", m.hangDetectorBuffers)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/coverage", m.coverage)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)
	r.PathPrefix("/").Handler(http.FileServer(web.GetAssets()))

	return r
}

// StartServer starts the monitor as a web server and returns its address.
func (m *Monitor) StartServer() (string, error) {
	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	if err != nil {
		return "", fmt.Errorf("starting monitor: %w", err)
	}

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)

	fmt.Fprintf(os.Stderr, "Monitoring simulation with %s\n", url)

	server := &http.Server{
		Handler:           m.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	m.lock.Lock()
	m.server = server
	m.lock.Unlock()

	go func() {
		err := server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Panic(err)
		}
	}()

	return url, nil
}

// OpenBrowser opens the dashboard in the default browser.
func OpenBrowser(url string) error {
	return browser.OpenURL(url)
}

// StopServer shuts the web server down.
func (m *Monitor) StopServer() error {
	m.lock.Lock()
	server := m.server
	m.server = nil
	m.lock.Unlock()

	if server == nil {
		return nil
	}

	return server.Close()
}

func (m *Monitor) runSource() RunSource {
	m.lock.Lock()
	defer m.lock.Unlock()

	return m.source
}

func (m *Monitor) currentEnv() *scenario.Env {
	s := m.runSource()
	if s == nil {
		return nil
	}

	return s.Current()
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	now := sim.VTimeInSec(0)
	if s := m.runSource(); s != nil {
		now = s.CurrentTime()
	}

	fmt.Fprintf(w, "{\"now\":%.10f}", now)
}

func (m *Monitor) components() []sim.Named {
	env := m.currentEnv()
	if env == nil {
		return nil
	}

	return env.Components()
}

func (m *Monitor) listComponents(w http.ResponseWriter, _ *http.Request) {
	names := []string{}
	for _, c := range m.components() {
		names = append(names, c.Name())
	}

	writeJSON(w, names)
}

func (m *Monitor) listComponentDetails(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	component := m.findComponentOr404(w, name)
	if component == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(component)
	serializer.SetMaxDepth(1)
	err := serializer.Serialize(w)

	dieOnErr(err)
}

type fieldReq struct {
	CompName  string `json:"comp_name,omitempty"`
	FieldName string `json:"field_name,omitempty"`
}

func (m *Monitor) listFieldValue(w http.ResponseWriter, r *http.Request) {
	jsonString := mux.Vars(r)["json"]
	req := fieldReq{}

	err := json.Unmarshal([]byte(jsonString), &req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	fields := strings.Split(req.FieldName, ".")

	component := m.findComponentOr404(w, req.CompName)
	if component == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(component)
	serializer.SetMaxDepth(1)

	err = serializer.SetEntryPoint(fields)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = serializer.Serialize(w)
	dieOnErr(err)
}

func (m *Monitor) findComponentOr404(
	w http.ResponseWriter,
	name string,
) sim.Named {
	for _, c := range m.components() {
		if c.Name() == name {
			return c
		}
	}

	w.WriteHeader(http.StatusNotFound)
	_, err := w.Write([]byte("Component not found"))
	dieOnErr(err)

	return nil
}

type bufferRsp struct {
	Buffer string `json:"buffer"`
	Level  int    `json:"level"`
	Cap    int    `json:"cap"`
}

func (m *Monitor) hangDetectorBuffers(w http.ResponseWriter, r *http.Request) {
	sortMethod, limit, offset, err := m.buffersParseParams(r)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)
		return
	}

	var buffers []sim.Buffer
	if env := m.currentEnv(); env != nil {
		buffers = env.Buffers()
	}

	rsp := []bufferRsp{}
	for _, b := range sortAndSelectBuffers(buffers, sortMethod, limit, offset) {
		rsp = append(rsp, bufferRsp{
			Buffer: b.Name(),
			Level:  b.Size(),
			Cap:    b.Capacity(),
		})
	}

	writeJSON(w, rsp)
}

func (*Monitor) buffersParseParams(
	r *http.Request,
) (sort string, limit, offset int, err error) {
	sortMethod := r.URL.Query().Get("sort")
	if sortMethod == "" {
		sortMethod = "percent"
	}

	if sortMethod != "level" && sortMethod != "percent" {
		return "", 0, 0, fmt.Errorf(
			"invalid sort method: %s. Allowed values are `level` and `percent`",
			sortMethod)
	}

	limit, err = intParam(r, "limit")
	if err != nil {
		return sortMethod, 0, 0, err
	}

	offset, err = intParam(r, "offset")
	if err != nil {
		return sortMethod, limit, 0, err
	}

	return sortMethod, limit, offset, nil
}

func intParam(r *http.Request, name string) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return 0, nil
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}

	if n < 0 {
		return 0, fmt.Errorf("%s must not be negative", name)
	}

	return n, nil
}

// bufferPercent treats unbounded buffers as never full.
func bufferPercent(b sim.Buffer) float64 {
	if b.Capacity() <= 0 {
		return 0
	}

	return float64(b.Size()) / float64(b.Capacity())
}

// sortAndSelectBuffers sorts the buffers and returns a page of them. A limit
// of 0 returns everything after the offset.
func sortAndSelectBuffers(
	buffers []sim.Buffer,
	sortMethod string,
	limit, offset int,
) []sim.Buffer {
	sorted := make([]sim.Buffer, len(buffers))
	copy(sorted, buffers)

	byLevel := func(i, j int) int {
		return sorted[i].Size() - sorted[j].Size()
	}
	byPercent := func(i, j int) int {
		pi, pj := bufferPercent(sorted[i]), bufferPercent(sorted[j])
		switch {
		case pi > pj:
			return 1
		case pi < pj:
			return -1
		default:
			return 0
		}
	}

	first, second := byPercent, byLevel
	if sortMethod == "level" {
		first, second = byLevel, byPercent
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		if c := first(i, j); c != 0 {
			return c > 0
		}

		return second(i, j) > 0
	})

	if offset >= len(sorted) {
		return nil
	}

	end := len(sorted)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	return sorted[offset:end]
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	bars := []ProgressBar{}

	if s := m.runSource(); s != nil {
		bars = append(bars, barOf(s.Progress(), m.startTime))
	}

	writeJSON(w, bars)
}

type coverageRsp struct {
	Run        string `json:"run"`
	DomainSize int    `json:"domain_size"`
	Covered    int    `json:"covered"`
	Missing    []int  `json:"missing"`
	Disabled   bool   `json:"disabled"`
}

func (m *Monitor) coverage(w http.ResponseWriter, _ *http.Request) {
	env := m.currentEnv()
	if env == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	t := env.Coverage()

	writeJSON(w, coverageRsp{
		Run:        env.Name(),
		DomainSize: t.Size(),
		Covered:    len(t.Covered()),
		Missing:    t.Missing(),
		Disabled:   t.Disabled(),
	})
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := process.CPUPercent()
	dieOnErr(err)

	memorySize, err := process.MemoryInfo()
	dieOnErr(err)

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	time.Sleep(m.profileDuration)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	bytes, err := json.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(bytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
