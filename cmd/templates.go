package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yungbote/chartmotion-backend/internal/modules/animation/templates"
	"github.com/yungbote/chartmotion-backend/internal/platform/envutil"
	"github.com/yungbote/chartmotion-backend/internal/platform/logger"
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List the registered animation templates and their axes",
	RunE: func(cmd *cobra.Command, args []string) error {
		defs := templates.NewRegistry(logger.Nop(), envutil.String("TEMPLATE_CATALOG_PATH", "")).List()
		if jsonOut {
			return printJSON(defs)
		}
		for _, d := range defs {
			fmt.Printf("%s  %s %s\n", bold(d.ID), d.Name, dim("["+string(d.Category)+"]"))
			if d.Description != "" {
				fmt.Println("  " + d.Description)
			}
			for _, a := range d.Axes {
				req := dim("optional")
				if a.Required {
					req = ok("required")
				}
				fmt.Printf("    %-14s %-12s %s\n", a.Key, a.Type, req)
			}
		}
		return nil
	},
}
