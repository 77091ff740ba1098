package app

import (
	"fmt"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/autopeer-io/ota-agent/internal/otaagent/hal"
	"github.com/autopeer-io/ota-agent/pkg/options"
	"github.com/autopeer-io/ota-agent/pkg/version"
)

func newSlotsCommand() *cobra.Command {
	o := options.NewSlotOptions()
	cmd := &cobra.Command{
		Use:   "slots",
		Short: "Print the boot slots and the pending boot selection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := hal.ReadBootEnv(o.Dir)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), slotsTable(env).String()+"\n")
			return nil
		},
	}
	cmd.Flags().StringVar(&o.Dir, "slots.dir", o.Dir, "Directory holding the boot slot images and boot environment.")
	return cmd
}

func slotsTable(env hal.BootEnv) *uitable.Table {
	table := uitable.New()
	table.MaxColWidth = 40
	table.AddRow("SLOT", "ACTIVE", "NEXT", "VERSION", "SIZE", "BOOTABLE", "UPDATED")
	for _, slot := range []hal.Slot{hal.SlotA, hal.SlotB} {
		rec := env.Slots[slot]
		updated := "-"
		if !rec.UpdatedAt.IsZero() {
			updated = rec.UpdatedAt.Format("2006-01-02 15:04:05")
		}
		ver := rec.Version
		if ver == "" {
			ver = "-"
		}
		table.AddRow(slot, mark(env.Active == slot), mark(env.NextBoot == slot), ver, rec.Size, rec.Bootable, updated)
	}
	return table
}

func mark(b bool) string {
	if b {
		return "*"
	}
	return ""
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Get().Text())
		},
	}
}
