package cli

import (
	"bufio"
	"fmt"
	"net/http"
	"os"
	"strings"
)

// Logs prints the last n lines of each selected service's log file
// under RunDir(), the same files Start redirects stdout/stderr into.
func Logs(args []string) error {
	n := 50
	var targets []string
	for _, a := range args {
		if strings.HasPrefix(a, "-n=") {
			fmt.Sscanf(a, "-n=%d", &n)
			continue
		}
		targets = append(targets, a)
	}
	dir := RunDir()
	for _, name := range selectServices(targets) {
		fmt.Printf("==> %s <==\n", name)
		if err := tailFile(logFile(dir, name), n); err != nil {
			fmt.Printf("  (no log output: %v)\n", err)
		}
	}
	return nil
}

func tailFile(path string, n int) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if len(lines) > n {
			lines = lines[1:]
		}
	}
	for _, line := range lines {
		fmt.Println(line)
	}
	return scanner.Err()
}

// Health calls each selected service's /healthz endpoint and prints its
// status, defaulting to the shared HEALTH_PORT GLADyS services use
// unless GLADYS_<NAME>_HEALTH_ADDR overrides it (useful when each
// service runs on its own host).
func Health(args []string) error {
	healthPort := getEnv("HEALTH_PORT", "8080")
	allHealthy := true
	for _, name := range selectServices(args) {
		addr := getEnv(strings.ToUpper("GLADYS_"+name+"_HEALTH_ADDR"), "http://localhost:"+healthPort+"/healthz")
		resp, err := http.Get(addr)
		if err != nil {
			fmt.Printf("%-12s unreachable: %v\n", name, err)
			allHealthy = false
			continue
		}
		resp.Body.Close()
		status := "healthy"
		if resp.StatusCode != http.StatusOK {
			status = fmt.Sprintf("unhealthy (http %d)", resp.StatusCode)
			allHealthy = false
		}
		fmt.Printf("%-12s %s\n", name, status)
	}
	if !allHealthy {
		return fmt.Errorf("one or more services are unhealthy")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
