package banner

import (
	"fmt"
	"io"
	"strings"
)

// Text is served on the root path so a deployment can be checked from a browser.
const Text = "PaperLink MVP ✅"

const banner = `
  ____                       _     _       _    
 |  _ \ __ _ _ __   ___ _ __| |   (_)_ __ | | __
 | |_) / _' | '_ \ / _ \ '__| |   | | '_ \| |/ /
 |  __/ (_| | |_) |  __/ |  | |___| | | | |   < 
 |_|   \__,_| .__/ \___|_|  |_____|_|_| |_|_|\_\
            |_|                                 
`

type StartupInfo struct {
	Version  string
	Addr     string
	BaseURL  string
	Store    string
	Cache    string
	LogLevel string
}

func PrintBanner(w io.Writer, info StartupInfo) {
	fmt.Fprint(w, banner)
	fmt.Fprintf(w, "                                    v%s\n\n", info.Version)

	rule := strings.Repeat("─", 50)
	fmt.Fprintf(w, "  %s\n", rule)
	fmt.Fprintf(w, "  → Address:   http://%s\n", formatAddr(info.Addr))
	if info.BaseURL != "" {
		fmt.Fprintf(w, "  → Base URL:  %s\n", info.BaseURL)
	}
	fmt.Fprintf(w, "  → Store:     %s\n", info.Store)
	fmt.Fprintf(w, "  → Cache:     %s\n", info.Cache)
	fmt.Fprintf(w, "  → Log Level: %s\n", info.LogLevel)
	fmt.Fprintf(w, "  %s\n\n", rule)
}

func formatAddr(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "localhost" + addr
	}
	return addr
}
