package main

import (
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/bill-tracker/internal/domain"
	"github.com/dvloznov/bill-tracker/internal/insights"
)

func shortDate(d civil.Date) string {
	return fmt.Sprintf("%02d/%02d/%02d", int(d.Month), d.Day, d.Year%100)
}

// printDetected lists the bills found by a detection run.
func printDetected(w io.Writer, bills []domain.Bill) {
	if len(bills) == 0 {
		return
	}
	fmt.Fprintln(w, "\nDetected Recurring Bills:")
	fmt.Fprintln(w, strings.Repeat("-", 60))
	fmt.Fprintf(w, "%-35s %-12s %-15s\n", "Merchant", "Amount", "Type")
	fmt.Fprintln(w, strings.Repeat("-", 60))
	for _, b := range bills {
		fmt.Fprintf(w, "%-35s $%-11.2f %-15s\n", insights.TruncateMerchant(b.Merchant), b.Amount, b.Type)
	}
}

// printBills renders the stored bills with their due dates and total.
func printBills(w io.Writer, bills []domain.Bill) {
	if len(bills) == 0 {
		fmt.Fprintln(w, "No recurring bills detected yet. Run 'cli demo' to load sample data.")
		return
	}

	fmt.Fprintln(w, "\nYour Recurring Bills:")
	fmt.Fprintln(w, strings.Repeat("-", 90))
	fmt.Fprintf(w, "%-35s %-12s %-15s %-12s %-12s\n", "Merchant", "Amount", "Type", "Last Paid", "Next Due")
	fmt.Fprintln(w, strings.Repeat("-", 90))

	total := 0.0
	for _, b := range bills {
		fmt.Fprintf(w, "%-35s $%-11.2f %-15s %-12s %-12s\n",
			insights.TruncateMerchant(b.Merchant), b.Amount, b.Type, shortDate(b.LastPaid), shortDate(b.NextDue()))
		total += b.Amount
	}

	fmt.Fprintln(w, strings.Repeat("-", 90))
	fmt.Fprintf(w, "Total Monthly Bills: $%.2f\n", total)
}

// printAlerts renders price alerts, upcoming due dates and subscriptions.
func printAlerts(w io.Writer, today civil.Date, bills []domain.Bill, dueSoonDays int) {
	if len(bills) == 0 {
		fmt.Fprintln(w, "No bills to show alerts for.")
		return
	}

	fmt.Fprintln(w, "Smart Alerts & Subscription Insights")
	fmt.Fprintln(w, strings.Repeat("-", 50))

	fmt.Fprintln(w, "\nBilling Amount Increase Alerts:")
	priceAlerts := insights.PriceAlerts(bills)
	if len(priceAlerts) == 0 {
		fmt.Fprintln(w, "No unusual price increases detected.")
	}
	for _, a := range priceAlerts {
		fmt.Fprintln(w, a.String())
	}

	fmt.Fprintln(w, "\nUpcoming Bills:")
	upcoming := insights.UpcomingBills(today, bills, insights.UpcomingWindowDays, dueSoonDays)
	if len(upcoming) == 0 {
		fmt.Fprintf(w, "Nothing due in the next %d days.\n", insights.UpcomingWindowDays)
	}
	for _, u := range upcoming {
		fmt.Fprintln(w, u.String())
	}

	fmt.Fprintln(w, "\nSubscription Analysis:")
	subs := insights.SubscriptionCandidates(bills)
	if len(subs.Bills) == 0 {
		fmt.Fprintln(w, "No small subscriptions found.")
		return
	}
	fmt.Fprintf(w, "Found %d potential subscriptions totaling $%.2f/month:\n", len(subs.Bills), subs.Total)
	for _, b := range subs.Bills {
		fmt.Fprintf(w, "  - %s: $%.2f/month\n", b.Merchant, b.Amount)
	}
	fmt.Fprintf(w, "\nTIP: Consider reviewing these services - you could save $%.2f/month if you cancel unused ones!\n", subs.Total)
}

func printInsights(w io.Writer, userName string, bills []domain.Bill) {
	if len(bills) == 0 {
		fmt.Fprintln(w, "No bills detected yet. Run 'cli demo' first.")
		return
	}
	for _, line := range insights.Summarize(userName, bills).Lines() {
		fmt.Fprintln(w, line)
	}
}
