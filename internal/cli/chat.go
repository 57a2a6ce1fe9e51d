package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/FlowDeck/FlowDeck/internal/bus"
	"github.com/FlowDeck/FlowDeck/internal/controller"
)

var chatAttachments []string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	RunE:  runChat,
}

func init() {
	chatCmd.Flags().StringSliceVarP(&chatAttachments, "file", "f", nil, "Attach file(s) to the next message")
}

func runChat(cmd *cobra.Command, args []string) error {
	printHeader("💬 FlowDeck Chat")

	out := &diffRenderer{}
	svc, err := openSession(out.render)
	if err != nil {
		return err
	}
	defer svc.close()

	svc.bus.SubscribeExecution(printExecutionEvent)

	active := svc.chats.Active()
	fmt.Printf("Thread: %s\n", active.Title)
	fmt.Println("Type a message, or /help for commands.")

	in := bufio.NewScanner(os.Stdin)
	in.Buffer(make([]byte, 1024*1024), 1024*1024)
	for {
		fmt.Print(color.GreenString("you> "))
		if !in.Scan() {
			fmt.Println()
			return in.Err()
		}
		line := strings.TrimSpace(in.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if done := chatCommand(svc, line); done {
				return nil
			}
			continue
		}

		files := chatAttachments
		chatAttachments = nil

		fmt.Print(color.CyanString("bot> "))
		out.reset()
		err := svc.ctrl.Send(context.Background(), line, files)
		fmt.Println()
		switch {
		case errors.Is(err, controller.ErrBusy):
			fmt.Println("Still working on the previous message.")
		case err != nil:
			fmt.Printf("Send failed: %v\n", err)
		}
	}
}

// chatCommand handles slash commands; returns true when the session ends.
func chatCommand(svc *services, line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true
	case "/new":
		th, err := svc.chats.CreateNewChat()
		if err != nil {
			fmt.Printf("Create failed: %v\n", err)
			return false
		}
		fmt.Printf("Started %s\n", th.Title)
	case "/list":
		activeID := svc.chats.ActiveID()
		for i, th := range svc.chats.List() {
			marker := "  "
			if th.ID == activeID {
				marker = "* "
			}
			fmt.Printf("%s%d. %s (%d messages)\n", marker, i+1, th.Title, len(th.Messages))
		}
	case "/switch":
		if len(fields) < 2 {
			fmt.Println("Usage: /switch <number>")
			return false
		}
		id, ok := threadID(svc, fields[1])
		if !ok {
			fmt.Printf("No thread %s (see /list)\n", fields[1])
			return false
		}
		if err := svc.chats.SwitchChat(id); err != nil {
			fmt.Printf("Switch failed: %v\n", err)
			return false
		}
		fmt.Printf("Now on %s\n", svc.chats.Active().Title)
	case "/delete":
		if len(fields) < 2 {
			fmt.Println("Usage: /delete <number>")
			return false
		}
		id, ok := threadID(svc, fields[1])
		if !ok {
			fmt.Printf("No thread %s (see /list)\n", fields[1])
			return false
		}
		if err := svc.chats.DeleteChat(id); err != nil {
			fmt.Printf("Delete failed: %v\n", err)
			return false
		}
		fmt.Printf("Deleted. Now on %s\n", svc.chats.Active().Title)
	case "/history":
		for _, msg := range svc.chats.Active().Messages {
			prefix := color.GreenString("you> ")
			if msg.Role != "user" {
				prefix = color.CyanString("bot> ")
			}
			fmt.Println(prefix + msg.Content)
		}
	case "/attach":
		if len(fields) < 2 {
			fmt.Println("Usage: /attach <path> [path...]")
			return false
		}
		chatAttachments = append(chatAttachments, fields[1:]...)
		fmt.Printf("%d file(s) queued for the next message.\n", len(chatAttachments))
	case "/help":
		fmt.Println("/new            start a new thread")
		fmt.Println("/list           list threads")
		fmt.Println("/switch <n>     switch to thread n from /list")
		fmt.Println("/delete <n>     delete thread n from /list")
		fmt.Println("/history        replay the active thread")
		fmt.Println("/attach <path>  queue a file attachment")
		fmt.Println("/quit           leave")
	default:
		fmt.Printf("Unknown command %s (try /help)\n", fields[0])
	}
	return false
}

// threadID resolves a /list position (or a raw thread id) to the thread id.
func threadID(svc *services, arg string) (string, bool) {
	list := svc.chats.List()
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(list) {
			return "", false
		}
		return list[n-1].ID, true
	}
	for _, th := range list {
		if th.ID == arg {
			return arg, true
		}
	}
	return "", false
}

// diffRenderer prints only what a render call adds beyond the last one, so a
// token-by-token stream appears as continuous typed output.
type diffRenderer struct {
	out  io.Writer
	last string
}

func (r *diffRenderer) render(visible string) {
	out := r.out
	if out == nil {
		out = os.Stdout
	}
	if strings.HasPrefix(visible, r.last) {
		fmt.Fprint(out, visible[len(r.last):])
	} else {
		// Not an extension (fresh message); start over on a new line.
		fmt.Fprint(out, "\n"+visible)
	}
	r.last = visible
}

func (r *diffRenderer) reset() { r.last = "" }

func printExecutionEvent(ev bus.ExecutionEvent) {
	if ev.Error != "" {
		fmt.Println(color.RedString("  [execution %s: %s]", ev.ExecutionID, ev.Error))
		return
	}
	if ev.Cleared {
		fmt.Println(color.HiBlackString("  [execution %s done]", ev.ExecutionID))
		return
	}
	if !ev.Finished {
		return
	}
	for _, node := range ev.Nodes {
		switch node.Status {
		case bus.NodeError:
			fmt.Println(color.RedString("  ✗ %s: %s", node.Name, node.Error))
		case bus.NodeCompleted:
			fmt.Println(color.GreenString("  ✓ %s", node.Name))
		default:
			fmt.Println(color.YellowString("  … %s", node.Name))
		}
	}
}
