package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var httpClient = &http.Client{Timeout: 15 * time.Second}

func authCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "auth", Short: "Register, log in and out"}

	var username, email, password, role, code string
	register := &cobra.Command{
		Use:   "register",
		Short: "Create an account; employees need their admin's code",
		RunE: func(cmd *cobra.Command, args []string) error {
			var out map[string]any
			if err := call(http.MethodPost, "/auth/register", map[string]string{
				"username":  username,
				"email":     email,
				"password":  password,
				"role":      role,
				"adminCode": code,
			}, &out); err != nil {
				return err
			}
			if err := saveToken(fmt.Sprint(out["token"])); err != nil {
				return err
			}
			fmt.Printf("✓ Registered %s as %s\n", username, role)
			if c, ok := out["adminCode"].(string); ok {
				fmt.Printf("  admin code: %s (share it with your employees)\n", c)
			}
			return nil
		},
	}
	register.Flags().StringVar(&username, "username", "", "username")
	register.Flags().StringVar(&email, "email", "", "email")
	register.Flags().StringVar(&password, "password", "", "password")
	register.Flags().StringVar(&role, "role", "employee", "admin or employee")
	register.Flags().StringVar(&code, "code", "", "admin code (employees)")
	_ = register.MarkFlagRequired("username")
	_ = register.MarkFlagRequired("email")
	_ = register.MarkFlagRequired("password")

	login := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			var out map[string]any
			if err := call(http.MethodPost, "/auth/login", map[string]string{
				"username": username,
				"password": password,
			}, &out); err != nil {
				return err
			}
			if err := saveToken(fmt.Sprint(out["token"])); err != nil {
				return err
			}
			fmt.Printf("✓ Logged in as %s (%v)\n", username, out["role"])
			return nil
		},
	}
	login.Flags().StringVar(&username, "username", "", "username")
	login.Flags().StringVar(&password, "password", "", "password")
	_ = login.MarkFlagRequired("username")
	_ = login.MarkFlagRequired("password")

	logout := &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := os.Remove(tokenFile()); err != nil && !os.IsNotExist(err) {
				return err
			}
			fmt.Println("✓ Logged out")
			return nil
		},
	}

	whoami := &cobra.Command{
		Use:   "whoami",
		Short: "Show the current account",
		RunE: func(cmd *cobra.Command, args []string) error {
			var me map[string]any
			if err := call(http.MethodGet, "/auth/me", nil, &me); err != nil {
				return err
			}
			fmt.Printf("%v (%v) role=%v\n", me["username"], me["email"], me["role"])
			if c, ok := me["admin_code"].(string); ok {
				fmt.Printf("admin code: %s\n", c)
			}
			return nil
		},
	}

	cmd.AddCommand(register, login, logout, whoami)
	return cmd
}

func tasksCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "tasks", Short: "List tasks and move them along"}

	var status, priority, employee string
	list := &cobra.Command{
		Use:   "list",
		Short: "List visible tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if status != "" {
				q.Set("status", status)
			}
			if priority != "" {
				q.Set("priority", priority)
			}
			if employee != "" {
				q.Set("employee_id", employee)
			}
			path := "/tasks"
			if len(q) > 0 {
				path += "?" + q.Encode()
			}

			var tasks []map[string]any
			if err := call(http.MethodGet, path, nil, &tasks); err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tPRIORITY\tEMPLOYEE\tDUE")
			for _, t := range tasks {
				due := t["due_date"]
				if due == nil {
					due = "-"
				}
				fmt.Fprintf(w, "%v\t%v\t%v\t%v\t%v\t%v\n", t["id"], t["title"], t["status"], t["priority"], t["employee_name"], due)
			}
			return w.Flush()
		},
	}
	list.Flags().StringVar(&status, "status", "", "pending, in-progress or completed")
	list.Flags().StringVar(&priority, "priority", "", "low, medium or high")
	list.Flags().StringVar(&employee, "employee", "", "employee id")

	move := &cobra.Command{
		Use:   "status <task-id> <status>",
		Short: "Change a task's status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var task map[string]any
			if err := call(http.MethodPatch, "/tasks/"+url.PathEscape(args[0])+"/status", map[string]string{"status": args[1]}, &task); err != nil {
				return err
			}
			fmt.Printf("✓ %v is now %v\n", task["title"], task["status"])
			return nil
		},
	}

	cmd.AddCommand(list, move)
	return cmd
}

func dashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Print the dashboard for the current account",
		RunE: func(cmd *cobra.Command, args []string) error {
			var dash map[string]any
			if err := call(http.MethodGet, "/dashboard", nil, &dash); err != nil {
				return err
			}
			out, err := json.MarshalIndent(dash, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
}

// call sends a JSON request with the stored token and decodes the answer
// into out. Non-2xx answers become errors carrying the API message.
func call(method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, apiURL()+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := loadToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error == "" {
			apiErr.Error = resp.Status
		}
		return fmt.Errorf("✗ %s", apiErr.Error)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func apiURL() string {
	if u := os.Getenv("TASKTRACKER_API"); u != "" {
		return strings.TrimRight(u, "/")
	}
	return "http://localhost:8080/api"
}

func tokenFile() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".tasktracker", "token")
}

func saveToken(token string) error {
	if err := os.MkdirAll(filepath.Dir(tokenFile()), 0o700); err != nil {
		return err
	}
	return os.WriteFile(tokenFile(), []byte(token), 0o600)
}

func loadToken() string {
	data, _ := os.ReadFile(tokenFile())
	return strings.TrimSpace(string(data))
}
