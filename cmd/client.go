package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/imaneimrh/relaychat/config"
	"github.com/imaneimrh/relaychat/peer"
	"github.com/imaneimrh/relaychat/shared"
)

func main() {
	listenPort := flag.Int("l", 0, "local port serving shared files (required)")
	serverPort := flag.Int("p", 0, "broker port (required unless -discover)")
	serverHost := flag.String("s", "localhost", "broker host")
	shareDir := flag.String("dir", ".", "directory whose files other clients may request")
	discover := flag.Bool("discover", false, "find a broker on the local network")
	flag.Parse()

	if *listenPort == 0 || (*serverPort == 0 && !*discover) {
		fmt.Println("╔═══════════════════════════════════════════════════════╗")
		fmt.Println("║              Relay Chat Client Usage                  ║")
		fmt.Println("╠═══════════════════════════════════════════════════════╣")
		fmt.Println("║ Usage: client -l <listen port> -p <port> [-s <host>]  ║")
		fmt.Println("║ Example: client -l 9001 -p 8080 -s localhost          ║")
		fmt.Println("╚═══════════════════════════════════════════════════════╝")
		os.Exit(1)
	}

	addr := net.JoinHostPort(*serverHost, strconv.Itoa(*serverPort))
	if *discover {
		brokers, err := peer.Discover(context.Background(), config.Default().ServiceName, 3*time.Second)
		if err != nil || len(brokers) == 0 {
			fmt.Printf("No broker found on the local network: %v\n", err)
			os.Exit(1)
		}
		addr = brokers[0].Addr
	}

	files := &peer.FileListener{Source: peer.DirSource{Root: *shareDir}, Timeout: time.Minute}
	if err := files.Listen(fmt.Sprintf(":%d", *listenPort)); err != nil {
		fmt.Printf("Error starting file listener: %v\n", err)
		os.Exit(1)
	}
	defer files.Close()
	go files.Serve()

	stdin := bufio.NewScanner(os.Stdin)
	fmt.Println("What is your name?")
	if !stdin.Scan() {
		os.Exit(0)
	}
	username := strings.TrimSpace(stdin.Text())

	chat, err := peer.Join(context.Background(), addr, username, files.Port())
	if err != nil {
		fmt.Printf("Error connecting to server: %v\n", err)
		os.Exit(1)
	}
	defer chat.Close()

	fmt.Printf("╔═══════════════════════════════════════════════════════╗\n")
	fmt.Printf("║              Relay Chat Client Connected              ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════╣\n")
	fmt.Printf("║ Server: %-45s ║\n", addr)
	fmt.Printf("║                                                       ║\n")
	fmt.Printf("║ /get <user> <file> downloads a file, /quit exits      ║\n")
	fmt.Printf("╚═══════════════════════════════════════════════════════╝\n")

	go func() {
		for {
			line, err := chat.Receive()
			if err != nil {
				if errors.Is(err, io.EOF) {
					fmt.Println("\n[Connection closed by server]")
				} else {
					fmt.Printf("\n[Error reading from server: %v]\n", err)
				}
				os.Exit(0)
			}
			fmt.Println(line)
		}
	}()

	for stdin.Scan() {
		input := stdin.Text()

		if strings.HasPrefix(input, "/get") {
			parts := strings.Fields(input)
			if len(parts) != 3 {
				fmt.Println("Usage: /get <username> <filename>")
				continue
			}
			go download(addr, parts[1], parts[2])
			continue
		}

		if input == "/quit" {
			fmt.Println("\nDisconnecting from chat server...")
			break
		}

		if err := chat.Send(input); err != nil {
			fmt.Printf("Error sending message: %v\n", err)
			break
		}
	}

	chat.Leave()
}

func download(addr, owner, filename string) {
	path, n, err := peer.Download(context.Background(), addr, owner, filename, ".")
	switch {
	case errors.Is(err, shared.ErrFileUnavailable):
		fmt.Printf("[%s could not send %s]\n", owner, filename)
	case err != nil:
		fmt.Printf("[Download of %s failed: %v]\n", filename, err)
	default:
		fmt.Printf("[Saved %s (%d bytes)]\n", path, n)
	}
}
