// cmd/tools/registry-updater/main.go
package main

import (
	"flag"
	"fmt"
	"os"

	"mockexam-workers/pkg/registry"
)

const defaultPath = "configs/activities.json"

func main() {
	addCmd := flag.NewFlagSet("add", flag.ExitOnError)
	updateCmd := flag.NewFlagSet("update", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)

	addPath := addCmd.String("path", defaultPath, "Path to registry file")
	idAdd := addCmd.String("id", "", "Activity ID (e.g., verify-booking-counter)")
	displayName := addCmd.String("displayName", "", "Display Name (e.g., Verify Booking Counter)")
	description := addCmd.String("description", "", "Description")
	category := addCmd.String("category", "", "Category (e.g., booking)")
	taskType := addCmd.String("taskType", "", "Zeebe task type (e.g., booking.counter.verify)")
	version := addCmd.String("version", "1.0.0", "Version")
	implStatus := addCmd.String("status", "planned", "Implementation status (planned, implemented)")
	timeout := addCmd.String("timeout", "30s", "Job timeout")
	retries := addCmd.Int("retries", 3, "Job retries")

	updatePath := updateCmd.String("path", defaultPath, "Path to registry file")
	idUpdate := updateCmd.String("id", "", "Activity ID to update")
	field := updateCmd.String("field", "", "Field to update (status, version, timeout, retries, ...)")
	value := updateCmd.String("value", "", "New value for the field")

	validatePath := validateCmd.String("path", defaultPath, "Path to registry file")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "add":
		addCmd.Parse(os.Args[2:])
		reg, err := loadOrCreate(*addPath)
		exitOnError("load registry", err)

		err = reg.Add(registry.Activity{
			ID:                   *idAdd,
			DisplayName:          *displayName,
			Description:          *description,
			Category:             *category,
			Version:              *version,
			TaskType:             *taskType,
			ImplementationStatus: *implStatus,
			ErrorCodes:           []string{},
			Timeout:              *timeout,
			Retries:              *retries,
		})
		exitOnError("add activity", err)
		exitOnError("save registry", reg.Save(*addPath))
		fmt.Printf("Added activity: %s\n", *idAdd)

	case "update":
		updateCmd.Parse(os.Args[2:])
		if *idUpdate == "" || *field == "" || *value == "" {
			fmt.Println("Error: id, field, and value are required for update.")
			updateCmd.Usage()
			os.Exit(1)
		}
		reg, err := registry.LoadRegistry(*updatePath)
		exitOnError("load registry", err)
		exitOnError("update activity", reg.Set(*idUpdate, *field, *value))
		exitOnError("save registry", reg.Save(*updatePath))
		fmt.Printf("Updated activity %s, field %s to %s\n", *idUpdate, *field, *value)

	case "validate":
		validateCmd.Parse(os.Args[2:])
		reg, err := registry.LoadRegistry(*validatePath)
		exitOnError("registry validation", err)
		if len(reg.Activities) == 0 {
			exitOnError("registry validation", fmt.Errorf("registry contains no activities"))
		}
		fmt.Printf("Registry validation passed. Found %d activities.\n", len(reg.Activities))

	default:
		help()
	}
}

func loadOrCreate(path string) (*registry.ActivityRegistry, error) {
	reg, err := registry.LoadRegistry(path)
	if os.IsNotExist(err) {
		return &registry.ActivityRegistry{Version: "1.0.0"}, nil
	}
	return reg, err
}

func exitOnError(step string, err error) {
	if err != nil {
		fmt.Printf("Error: %s: %v\n", step, err)
		os.Exit(1)
	}
}

func help() {
	fmt.Println(`
Usage: registry-updater <command> [flags]

Commands:
  add       Add a new activity to the registry
  update    Update an existing activity's field
  validate  Validate the registry file
  help      Show this help message

Examples:
  registry-updater add -id export-bookings -displayName "Export Bookings" -category admin -taskType admin.bookings.export -timeout 2m
  registry-updater update -id export-bookings -field status -value implemented
  registry-updater validate -path configs/activities.json`)
}
