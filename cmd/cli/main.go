package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "auth":
		handleAuth(args)
	case "expense":
		handleExpense(args)
	case "analytics":
		showAnalytics(args)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func handleAuth(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: expensehub auth <register|login|logout|who>")
		return
	}

	subCmd := args[0]
	switch subCmd {
	case "register":
		registerCompany(args[1:])
	case "login":
		login(args[1:])
	case "logout":
		logout()
	case "who":
		whoAmI()
	default:
		fmt.Printf("unknown auth command: %s\n", subCmd)
	}
}

func handleExpense(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: expensehub expense <list|create|update|delete|approve|reject>")
		return
	}

	subCmd := args[0]
	switch subCmd {
	case "list":
		listExpenses(args[1:])
	case "create":
		createExpense(args[1:])
	case "update":
		updateExpense(args[1:])
	case "delete":
		deleteExpense(args[1:])
	case "approve":
		setStatus(args[1:], "approved")
	case "reject":
		setStatus(args[1:], "rejected")
	default:
		fmt.Printf("unknown expense command: %s\n", subCmd)
	}
}

// session is what the CLI keeps between invocations
type session struct {
	Token     string    `json:"token"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CompanyID string    `json:"companyId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Auth commands
func registerCompany(args []string) {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	company := fs.String("company", "", "company name")
	name := fs.String("name", "", "admin display name")
	email := fs.String("email", "", "admin email")
	password := fs.String("password", "", "password (min 6 characters)")
	_ = fs.Parse(args)

	if *company == "" || *name == "" || *email == "" || *password == "" {
		fmt.Println("Error: company, name, email and password are required")
		fs.PrintDefaults()
		return
	}

	payload := map[string]string{
		"companyName": *company,
		"name":        *name,
		"email":       *email,
		"password":    *password,
	}
	var s session
	if err := call(http.MethodPost, "/auth/register-company", payload, &s); err != nil {
		fmt.Printf("✗ Registration failed: %v\n", err)
		return
	}
	if err := saveSession(s); err != nil {
		fmt.Printf("Error: saving session: %v\n", err)
		return
	}
	fmt.Printf("✓ Company %q registered, logged in as %s (%s)\n", *company, s.Email, s.Role)
}

func login(args []string) {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "user email")
	password := fs.String("password", "", "password")
	_ = fs.Parse(args)

	if *email == "" || *password == "" {
		fmt.Println("Error: email and password are required")
		fs.PrintDefaults()
		return
	}

	var s session
	payload := map[string]string{"email": *email, "password": *password}
	if err := call(http.MethodPost, "/auth/login", payload, &s); err != nil {
		fmt.Printf("✗ Login failed: %v\n", err)
		return
	}
	if err := saveSession(s); err != nil {
		fmt.Printf("Error: saving session: %v\n", err)
		return
	}
	fmt.Printf("✓ Logged in as: %s (%s)\n", s.Email, s.Role)
}

func logout() {
	_ = os.Remove(sessionFile())
	fmt.Println("✓ Logged out")
}

func whoAmI() {
	s, ok := loadSession()
	if !ok {
		fmt.Println("Not logged in")
		return
	}
	if !s.ExpiresAt.IsZero() && time.Now().After(s.ExpiresAt) {
		fmt.Println("Session expired, log in again")
		return
	}
	fmt.Printf("✓ %s <%s>, role %s, company %s\n", s.Name, s.Email, s.Role, s.CompanyID)
}

// Expense commands
func listExpenses(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	page := fs.Int("page", 1, "page number")
	limit := fs.Int("limit", 10, "page size")
	category := fs.String("category", "", "filter by category")
	status := fs.String("status", "", "filter by status")
	from := fs.String("from", "", "start date YYYY-MM-DD")
	to := fs.String("to", "", "end date YYYY-MM-DD")
	sort := fs.String("sort", "", "sort field[:asc|desc]")
	_ = fs.Parse(args)

	q := url.Values{}
	q.Set("page", fmt.Sprint(*page))
	q.Set("limit", fmt.Sprint(*limit))
	setIf(q, "category", *category)
	setIf(q, "status", *status)
	setIf(q, "startDate", *from)
	setIf(q, "endDate", *to)
	setIf(q, "sort", *sort)

	var result struct {
		Expenses []struct {
			ID          string  `json:"id"`
			Amount      float64 `json:"amount"`
			Category    string  `json:"category"`
			Date        string  `json:"date"`
			Status      string  `json:"status"`
			Description string  `json:"description"`
			User        *struct {
				Name string `json:"name"`
			} `json:"user"`
		} `json:"expenses"`
		CurrentPage int `json:"currentPage"`
		TotalPages  int `json:"totalPages"`
		Total       int `json:"totalExpenses"`
	}
	if err := call(http.MethodGet, "/expenses?"+q.Encode(), nil, &result); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tAMOUNT\tCATEGORY\tSTATUS\tOWNER\tDESCRIPTION")
	for _, e := range result.Expenses {
		owner := ""
		if e.User != nil {
			owner = e.User.Name
		}
		date := e.Date
		if len(date) >= 10 {
			date = date[:10]
		}
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\t%s\t%s\t%s\n", e.ID, date, e.Amount, e.Category, e.Status, owner, e.Description)
	}
	_ = w.Flush()
	fmt.Printf("page %d of %d, %d expenses\n", result.CurrentPage, result.TotalPages, result.Total)
}

func createExpense(args []string) {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	amount := fs.Float64("amount", 0, "amount")
	category := fs.String("category", "", "category")
	date := fs.String("date", time.Now().Format(time.DateOnly), "date YYYY-MM-DD")
	description := fs.String("description", "", "description")
	_ = fs.Parse(args)

	if *amount <= 0 || *category == "" {
		fmt.Println("Error: a positive amount and a category are required")
		fs.PrintDefaults()
		return
	}

	payload := map[string]any{
		"amount":      *amount,
		"category":    *category,
		"date":        *date,
		"description": *description,
	}
	var created struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := call(http.MethodPost, "/expenses", payload, &created); err != nil {
		fmt.Printf("✗ Create failed: %v\n", err)
		return
	}
	fmt.Printf("✓ Expense %s created (%s)\n", created.ID, created.Status)
}

func updateExpense(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: expensehub expense update <expense-id> [-amount N] [-category C] [-date D] [-description T]")
		return
	}
	id := args[0]

	fs := flag.NewFlagSet("update", flag.ExitOnError)
	amount := fs.Float64("amount", 0, "amount")
	category := fs.String("category", "", "category")
	date := fs.String("date", "", "date YYYY-MM-DD")
	description := fs.String("description", "", "description")
	_ = fs.Parse(args[1:])

	payload := map[string]any{}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "amount":
			payload["amount"] = *amount
		case "category":
			payload["category"] = *category
		case "date":
			payload["date"] = *date
		case "description":
			payload["description"] = *description
		}
	})
	if len(payload) == 0 {
		fmt.Println("Error: at least one field must be provided")
		fs.PrintDefaults()
		return
	}

	if err := call(http.MethodPut, "/expenses/"+url.PathEscape(id), payload, nil); err != nil {
		fmt.Printf("✗ Update failed: %v\n", err)
		return
	}
	fmt.Printf("✓ Expense %s updated\n", id)
}

func deleteExpense(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: expensehub expense delete <expense-id>")
		return
	}
	if err := call(http.MethodDelete, "/expenses/"+url.PathEscape(args[0]), nil, nil); err != nil {
		fmt.Printf("✗ Delete failed: %v\n", err)
		return
	}
	fmt.Printf("✓ Expense %s removed\n", args[0])
}

func setStatus(args []string, status string) {
	if len(args) < 1 {
		fmt.Printf("Usage: expensehub expense %s <expense-id>\n", map[string]string{"approved": "approve", "rejected": "reject"}[status])
		return
	}
	payload := map[string]string{"status": status}
	if err := call(http.MethodPatch, "/expenses/"+url.PathEscape(args[0])+"/status", payload, nil); err != nil {
		fmt.Printf("✗ Status change failed: %v\n", err)
		return
	}
	fmt.Printf("✓ Expense %s %s\n", args[0], status)
}

// Analytics
func showAnalytics(args []string) {
	fs := flag.NewFlagSet("analytics", flag.ExitOnError)
	from := fs.String("from", "", "start date YYYY-MM-DD (default: current month)")
	to := fs.String("to", "", "end date YYYY-MM-DD")
	_ = fs.Parse(args)

	path := "/analytics"
	if *from != "" && *to != "" {
		q := url.Values{"startDate": {*from}, "endDate": {*to}}
		path += "?" + q.Encode()
	}

	var result struct {
		KPI struct {
			TotalExpenses   float64 `json:"totalExpenses"`
			ExpenseCount    int64   `json:"expenseCount"`
			AvgDailyExpense float64 `json:"avgDailyExpense"`
			HighestExpense  struct {
				Amount      float64 `json:"amount"`
				Description string  `json:"description"`
			} `json:"highestExpense"`
			Budget struct {
				Limit     float64 `json:"limit"`
				Remaining float64 `json:"remaining"`
				Usage     float64 `json:"usage"`
			} `json:"budget"`
			Comparison struct {
				PrevTotal        float64 `json:"prevTotal"`
				PercentageChange float64 `json:"percentageChange"`
			} `json:"comparison"`
		} `json:"kpi"`
		Charts struct {
			CategorySummary []struct {
				Category string  `json:"category"`
				Total    float64 `json:"total"`
				Count    int64   `json:"count"`
			} `json:"categorySummary"`
		} `json:"charts"`
	}
	if err := call(http.MethodGet, path, nil, &result); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	k := result.KPI
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Total\t%.2f (%d expenses)\n", k.TotalExpenses, k.ExpenseCount)
	fmt.Fprintf(w, "Daily average\t%.2f\n", k.AvgDailyExpense)
	fmt.Fprintf(w, "Highest\t%.2f %s\n", k.HighestExpense.Amount, k.HighestExpense.Description)
	fmt.Fprintf(w, "Budget\t%.2f used of %.2f (%.1f%%), %.2f left\n", k.TotalExpenses, k.Budget.Limit, k.Budget.Usage, k.Budget.Remaining)
	fmt.Fprintf(w, "Previous period\t%.2f (%+.1f%%)\n", k.Comparison.PrevTotal, k.Comparison.PercentageChange)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "CATEGORY\tTOTAL\tCOUNT")
	for _, c := range result.Charts.CategorySummary {
		fmt.Fprintf(w, "%s\t%.2f\t%d\n", c.Category, c.Total, c.Count)
	}
	_ = w.Flush()
}

// Helper functions

// call sends a JSON request to the API and decodes a JSON response into out.
// Non-2xx answers come back as an error carrying the server's message.
func call(method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, getAPIURL()+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s, ok := loadSession(); ok {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Message string `json:"message"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("%s (%d)", apiErr.Message, resp.StatusCode)
		}
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func setIf(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}

func getAPIURL() string {
	if u := os.Getenv("EXPENSEHUB_API"); u != "" {
		return u
	}
	return "http://localhost:8080/api"
}

func sessionFile() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".expensehub", "session.json")
}

func saveSession(s session) error {
	if err := os.MkdirAll(filepath.Dir(sessionFile()), 0o700); err != nil {
		return err
	}
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(sessionFile(), data, 0o600)
}

func loadSession() (session, bool) {
	var s session
	data, err := os.ReadFile(sessionFile())
	if err != nil {
		return s, false
	}
	if err := json.Unmarshal(data, &s); err != nil || s.Token == "" {
		return s, false
	}
	return s, true
}

func printUsage() {
	fmt.Print(`ExpenseHub CLI

Usage:
  expensehub <command> [options]

Commands:
  auth       Authentication (register, login, logout, who)
  expense    Expense operations (list, create, update, delete, approve, reject)
  analytics  Dashboard KPIs for a date range (default: current month)
  help       Show this help message

Environment Variables:
  EXPENSEHUB_API    API endpoint (default: http://localhost:8080/api)

Examples:
  expensehub auth register -company Acme -name Ada -email ada@acme.test -password secret1
  expensehub auth login -email ada@acme.test -password secret1
  expensehub expense create -amount 42.50 -category travel -date 2026-04-10
  expensehub expense list -status pending -sort amount:desc
  expensehub expense approve 6f1c...
  expensehub analytics -from 2026-04-01 -to 2026-04-30
`)
}
