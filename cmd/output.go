package cmd

import (
	"fmt"
	"os"
	"strconv"

	"cryogon/rizumu-fetch/downloader"
	"cryogon/rizumu-fetch/media"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
)

var (
	okColor   = color.New(color.FgGreen)
	infoColor = color.New(color.FgCyan)
	warnColor = color.New(color.FgYellow)
)

func printDescriptors(results []media.Descriptor) {
	if len(results) == 0 {
		warnColor.Println("No results.")
		return
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"", "Title", "Author", "Duration", "URL"})
	table.SetRowLine(false)
	table.SetAutoWrapText(false)
	table.SetColumnColor(tablewriter.Colors{tablewriter.FgCyanColor},
		tablewriter.Colors{tablewriter.Bold},
		tablewriter.Colors{},
		tablewriter.Colors{},
		tablewriter.Colors{})
	for i, d := range results {
		table.Append([]string{strconv.Itoa(i + 1), d.Title, d.Author, d.Duration, d.URL})
	}
	table.Render()
}

func printPending(owner string, jobs []downloader.Summary) {
	if len(jobs) == 0 {
		warnColor.Printf("Queue of %s is empty.\n", owner)
		return
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"", "Job", "Type", "Title"})
	table.SetRowLine(false)
	for i, j := range jobs {
		table.Append([]string{strconv.Itoa(i + 1), j.JobID, string(j.Type), j.Title})
	}
	table.Render()
}

func printOutcome(out *downloader.Outcome) {
	if out.Cached {
		infoColor.Print("Already downloaded: ")
	} else {
		okColor.Print("Saved: ")
	}
	fmt.Println(out.Path)
}
