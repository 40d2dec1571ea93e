package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/messenjrali/msgr/internal/session"
	"github.com/messenjrali/msgr/internal/tui/client"
	"golang.org/x/term"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	flag.Parse()

	profileName := session.Resolve(*profileFlag)
	if err := session.ValidateName(profileName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	// Profile listing works without a running daemon.
	if args[0] == "profiles" {
		cmdProfiles(*jsonFlag)
		return
	}

	c := client.New(session.SocketPath(profileName))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch args[0] {
	case "status":
		cmdStatus(ctx, c, *jsonFlag)
	case "login":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: msgrctl login <email>")
			os.Exit(1)
		}
		cmdLogin(ctx, c, args[1])
	case "logout":
		cmdLogout(ctx, c)
	case "conversations":
		cmdConversations(ctx, c, *jsonFlag)
	case "refresh":
		cmdRefresh(ctx, c)
	case "select":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: msgrctl select <conversation-id>")
			os.Exit(1)
		}
		cmdSelect(ctx, c, args[1])
	case "send":
		if len(args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: msgrctl send <conversation-id> <text>")
			os.Exit(1)
		}
		cmdSend(ctx, c, args[1], strings.Join(args[2:], " "))
	case "contacts":
		if len(args) >= 3 && args[1] == "rm" {
			cmdDeleteContact(ctx, c, args[2])
		} else {
			cmdContacts(ctx, c, *jsonFlag)
		}
	case "search":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: msgrctl search <query>")
			os.Exit(1)
		}
		cmdSearch(ctx, c, strings.Join(args[1:], " "), *jsonFlag)
	case "prefs":
		if len(args) >= 3 && args[1] == "theme" {
			cmdSetTheme(ctx, c, args[2])
		} else {
			cmdPrefs(ctx, c, *jsonFlag)
		}
	case "notifications":
		switch {
		case len(args) >= 3 && args[1] == "read":
			cmdNotificationRead(ctx, c, args[2])
		case len(args) >= 2 && args[1] == "read-all":
			cmdNotificationsReadAll(ctx, c)
		default:
			cmdNotifications(ctx, c, *jsonFlag)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: msgrctl [--profile <name>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  status                      Show daemon status")
	fmt.Fprintln(os.Stderr, "  login <email>               Log in (prompts for password)")
	fmt.Fprintln(os.Stderr, "  logout                      Log out and clear the session")
	fmt.Fprintln(os.Stderr, "  conversations               List conversations")
	fmt.Fprintln(os.Stderr, "  refresh                     Force a conversation refetch")
	fmt.Fprintln(os.Stderr, "  select <id>                 Mark a conversation as open")
	fmt.Fprintln(os.Stderr, "  send <id> <text>            Queue a message for delivery")
	fmt.Fprintln(os.Stderr, "  contacts                    List contacts")
	fmt.Fprintln(os.Stderr, "  contacts rm <id>            Delete a contact")
	fmt.Fprintln(os.Stderr, "  search <query>              Search users")
	fmt.Fprintln(os.Stderr, "  notifications               List notifications")
	fmt.Fprintln(os.Stderr, "  notifications read <id>     Mark one notification read")
	fmt.Fprintln(os.Stderr, "  notifications read-all      Mark all notifications read")
	fmt.Fprintln(os.Stderr, "  prefs                       Show display preferences")
	fmt.Fprintln(os.Stderr, "  prefs theme <name>          Set the color theme")
	fmt.Fprintln(os.Stderr, "  profiles                    List known profiles")
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

func cmdStatus(ctx context.Context, c *client.Client, jsonOut bool) {
	st, err := c.Status(ctx)
	if err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(st)
		return
	}
	fmt.Printf("Profile: %s\n", st.Profile)
	fmt.Printf("State:   %s\n", st.State)
	if st.User != nil {
		fmt.Printf("User:    %s\n", st.User.DisplayName)
	}
}

func cmdLogin(ctx context.Context, c *client.Client, email string) {
	fmt.Fprint(os.Stderr, "Password: ")
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		fail(err)
	}

	u, err := c.Login(ctx, email, string(pw))
	if err != nil {
		fail(err)
	}
	fmt.Printf("Logged in as %s\n", u.DisplayName)
}

func cmdLogout(ctx context.Context, c *client.Client) {
	if err := c.Logout(ctx); err != nil {
		fail(err)
	}
	fmt.Println("Logged out.")
}

func cmdConversations(ctx context.Context, c *client.Client, jsonOut bool) {
	convs, err := c.Conversations(ctx)
	if err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(convs)
		return
	}
	if len(convs) == 0 {
		fmt.Println("No conversations.")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tKIND\tUNREAD\tLAST MESSAGE")
	for _, conv := range convs {
		preview := conv.LastMessagePreview
		if len(preview) > 40 {
			preview = preview[:40] + "…"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", conv.ID, conv.DisplayName, conv.Kind, conv.UnreadCount, preview)
	}
	_ = w.Flush()
}

func cmdRefresh(ctx context.Context, c *client.Client) {
	if err := c.RefreshConversations(ctx); err != nil {
		fail(err)
	}
	fmt.Println("Refreshed.")
}

func cmdSelect(ctx context.Context, c *client.Client, id string) {
	if err := c.Select(ctx, id); err != nil {
		fail(err)
	}
	fmt.Printf("Selected %s\n", id)
}

func cmdSend(ctx context.Context, c *client.Client, id, text string) {
	clientMsgID, err := c.Send(ctx, id, text)
	if err != nil {
		fail(err)
	}
	fmt.Printf("Queued (client msg id %s)\n", clientMsgID)
}

func cmdContacts(ctx context.Context, c *client.Client, jsonOut bool) {
	contacts, err := c.Contacts(ctx)
	if err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(contacts)
		return
	}
	if len(contacts) == 0 {
		fmt.Println("No contacts.")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTATUS")
	for _, ct := range contacts {
		fmt.Fprintf(w, "%s\t%s\t%s\n", ct.ID, ct.DisplayName, ct.Status)
	}
	_ = w.Flush()
}

func cmdDeleteContact(ctx context.Context, c *client.Client, id string) {
	if err := c.DeleteContact(ctx, id); err != nil {
		fail(err)
	}
	fmt.Printf("Deleted %s\n", id)
}

func cmdSearch(ctx context.Context, c *client.Client, query string, jsonOut bool) {
	results, err := c.SearchUsers(ctx, query)
	if err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(results)
		return
	}
	if len(results) == 0 {
		fmt.Println("No matches.")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTATUS\tSOURCE")
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.UserID, r.DisplayName, r.Status, r.Source)
	}
	_ = w.Flush()
}

func cmdPrefs(ctx context.Context, c *client.Client, jsonOut bool) {
	p, err := c.Prefs(ctx)
	if err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(p)
		return
	}
	fmt.Printf("Theme:           %s\n", p.Theme)
	fmt.Printf("Chat background: %s\n", p.ChatBackground)
	fmt.Printf("Background blur: %.1f\n", p.BackgroundBlur)
}

func cmdSetTheme(ctx context.Context, c *client.Client, theme string) {
	p, err := c.UpdatePrefs(ctx, client.PrefsPatch{Theme: &theme})
	if err != nil {
		fail(err)
	}
	fmt.Printf("Theme set to %s\n", p.Theme)
}

func cmdNotifications(ctx context.Context, c *client.Client, jsonOut bool) {
	ns, err := c.Notifications(ctx)
	if err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(ns)
		return
	}
	fmt.Printf("Unread: %d\n", ns.Unread)
	if len(ns.Notifications) == 0 {
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "\tID\tTITLE\tMESSAGE")
	for _, n := range ns.Notifications {
		marker := " "
		if !n.Read {
			marker = "●"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", marker, n.ID, n.Title, n.Message)
	}
	_ = w.Flush()
}

func cmdNotificationRead(ctx context.Context, c *client.Client, id string) {
	if err := c.MarkNotificationRead(ctx, id); err != nil {
		fail(err)
	}
	fmt.Printf("Marked %s read\n", id)
}

func cmdNotificationsReadAll(ctx context.Context, c *client.Client) {
	if err := c.MarkAllNotificationsRead(ctx); err != nil {
		fail(err)
	}
	fmt.Println("Marked all read.")
}

func cmdProfiles(jsonOut bool) {
	entries, err := os.ReadDir(session.BaseDir())
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("No profiles found.")
			return
		}
		fail(err)
	}

	type profileInfo struct {
		Name    string `json:"name"`
		Path    string `json:"path"`
		Running bool   `json:"running"`
	}

	var profiles []profileInfo
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		profiles = append(profiles, profileInfo{
			Name:    name,
			Path:    session.Dir(name),
			Running: probeDaemon(session.SocketPath(name)),
		})
	}

	if jsonOut {
		outputJSON(profiles)
		return
	}
	if len(profiles) == 0 {
		fmt.Println("No profiles found.")
		return
	}
	for _, p := range profiles {
		running := "stopped"
		if p.Running {
			running = "running"
		}
		fmt.Printf("%-20s %s (%s)\n", p.Name, p.Path, running)
	}
}

// probeDaemon checks whether a daemon answers on the socket.
func probeDaemon(socketPath string) bool {
	if _, err := os.Stat(socketPath); err != nil {
		return false
	}
	c := client.New(socketPath)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := c.Status(ctx)
	return err == nil
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}
