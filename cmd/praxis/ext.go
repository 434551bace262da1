// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Praxis Contributors

package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/praxis-hq/praxis/internal/capability"
	"github.com/praxis-hq/praxis/internal/installer"
	"github.com/praxis-hq/praxis/internal/integrity"
	"github.com/praxis-hq/praxis/internal/license"
	"github.com/praxis-hq/praxis/internal/registry"
	praxiserr "github.com/praxis-hq/praxis/pkg/errors"
	"github.com/praxis-hq/praxis/pkg/extension"
)

func newExtCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ext",
		Short: "Manage extensions",
	}

	cmd.PersistentFlags().String("actor", "admin", "administrator identity recorded in the audit trail")

	cmd.AddCommand(
		newExtListCmd(),
		newExtInstallCmd(),
		newExtVerifyCmd(),
		newExtGrantCmd(),
		newExtEnableCmd(),
		newExtDisableCmd(),
		newExtRevokeCmd(),
		newExtUninstallCmd(),
		newExtSweepCmd(),
	)

	return cmd
}

func actorFlag(cmd *cobra.Command) string {
	actor, _ := cmd.Flags().GetString("actor")
	return actor
}

func newExtListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List installed extensions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			exts := app.Registry.GetAll()
			if len(exts) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no extensions installed")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tVERSION\tSTATE\tPUBLISHER\tGRANTED")
			for _, ext := range exts {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					ext.Manifest.ID, ext.Manifest.Version, ext.State,
					ext.Manifest.Publisher, formatCapabilitySet(ext.Granted))
			}
			return w.Flush()
		},
	}
}

func newExtInstallCmd() *cobra.Command {
	var sha256Hex, signature string

	cmd := &cobra.Command{
		Use:   "install <extension-id> <package.zip>",
		Short: "Verify and install an extension package",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, pkgPath := args[0], args[1]
			actor := actorFlag(cmd)

			data, err := os.ReadFile(pkgPath)
			if err != nil {
				return praxiserr.Wrapf(err, praxiserr.CodeCLIInputInvalid, "reading package %s", pkgPath)
			}

			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			pkg := installer.Package{
				ID:      id,
				Bytes:   data,
				Meta:    integrity.Metadata{SHA256: sha256Hex, Signature: signature},
				ActorID: actor,
			}
			register := func(ctx context.Context, manifest *extension.Manifest, installPath string) error {
				return app.Registry.Install(ctx, manifest, installPath, actor)
			}
			res, err := app.Installer.Install(cmd.Context(), pkg, register)
			if err != nil {
				if res != nil && res.RolledBack {
					fmt.Fprintf(cmd.ErrOrStderr(), "install failed at stage %s, previous version restored\n", res.Stage)
				}
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "installed %s %s to %s\n",
				res.Manifest.ID, res.Manifest.Version, res.InstallPath)
			printRisk(cmd, res.Manifest.Capabilities)
			fmt.Fprintln(cmd.OutOrStdout(), "no capabilities granted yet; run `praxis ext grant` before enabling")
			return nil
		},
	}

	cmd.Flags().StringVar(&sha256Hex, "sha256", "", "expected hex-encoded SHA-256 of the package")
	cmd.Flags().StringVar(&signature, "signature", "", "base64-encoded publisher signature over the hash")
	_ = cmd.MarkFlagRequired("sha256")
	_ = cmd.MarkFlagRequired("signature")

	return cmd
}

func newExtVerifyCmd() *cobra.Command {
	var sha256Hex, signature string

	cmd := &cobra.Command{
		Use:   "verify <package.zip>",
		Short: "Check package integrity without installing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return praxiserr.Wrapf(err, praxiserr.CodeCLIInputInvalid, "reading package %s", args[0])
			}

			verifier, err := integrity.NewVerifier()
			if err != nil {
				return err
			}
			if err := verifier.Verify(data, integrity.Metadata{SHA256: sha256Hex, Signature: signature}); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "package integrity verified")
			return nil
		},
	}

	cmd.Flags().StringVar(&sha256Hex, "sha256", "", "expected hex-encoded SHA-256 of the package")
	cmd.Flags().StringVar(&signature, "signature", "", "base64-encoded publisher signature over the hash")
	_ = cmd.MarkFlagRequired("sha256")
	_ = cmd.MarkFlagRequired("signature")

	return cmd
}

func newExtGrantCmd() *cobra.Command {
	var caps []string
	var origins []string

	cmd := &cobra.Command{
		Use:   "grant <extension-id>",
		Short: "Replace an extension's granted capabilities",
		Long: "Replaces the granted capability set wholesale. Each --cap takes the form\n" +
			"resource:action[,action...], e.g. --cap patientRecord:read,update. Grants\n" +
			"must stay within what the extension's manifest requests.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			granted, err := parseCapabilityFlags(caps, origins)
			if err != nil {
				return err
			}

			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Registry.GrantCapabilities(cmd.Context(), args[0], granted, actorFlag(cmd)); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "granted to %s: %s\n", args[0], formatCapabilitySet(granted))
			printRisk(cmd, granted)

			ext, err := app.Registry.Get(args[0])
			if err == nil {
				if remaining := capability.Diff(ext.Manifest.Capabilities, granted); !remaining.IsEmpty() {
					fmt.Fprintf(cmd.OutOrStdout(), "still un-granted: %s\n", formatCapabilitySet(remaining))
				}
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&caps, "cap", nil, "resource capability, resource:action[,action...] (repeatable)")
	cmd.Flags().StringArrayVar(&origins, "network", nil, "allowed network origin (repeatable)")

	return cmd
}

func newExtEnableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enable <extension-id>",
		Short: "Enable an installed extension",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Registry.Enable(cmd.Context(), args[0], actorFlag(cmd)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enabled %s\n", args[0])
			return nil
		},
	}
}

func newExtDisableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disable <extension-id>",
		Short: "Disable an enabled extension",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Registry.Disable(cmd.Context(), args[0], actorFlag(cmd)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "disabled %s\n", args[0])
			return nil
		},
	}
}

func newExtRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <extension-id>",
		Short: "Revoke all granted capabilities, disabling the extension if needed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Registry.RevokeCapabilities(cmd.Context(), args[0], actorFlag(cmd)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "revoked all capabilities from %s\n", args[0])
			return nil
		},
	}
}

func newExtUninstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall <extension-id>",
		Short: "Remove an extension from the registry and disk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			ext, err := app.Registry.Get(args[0])
			if err != nil {
				return err
			}
			if err := app.Registry.Uninstall(cmd.Context(), args[0], actorFlag(cmd)); err != nil {
				return err
			}
			if ext.InstallPath != "" {
				if err := os.RemoveAll(ext.InstallPath); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: could not remove %s: %v\n", ext.InstallPath, err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "uninstalled %s\n", args[0])
			return nil
		},
	}
}

func newExtSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Re-verify licenses for all enabled extensions",
		Long: "Performs a fresh online license verification for every enabled extension\n" +
			"and disables those whose license is no longer valid. The sweep aborts on\n" +
			"the first unreachable network call so an outage cannot mass-disable a\n" +
			"working installation.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			enabled := app.Registry.GetEnabled()
			ids := make([]string, 0, len(enabled))
			for _, ext := range enabled {
				ids = append(ids, ext.Manifest.ID)
			}

			disable := license.DisableFunc(func(ctx context.Context, id, reason string) error {
				return app.Registry.DisableWithReason(ctx, id, registry.SystemActor, reason)
			})
			if err := app.Licenses.StartupSweep(cmd.Context(), ids, disable); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "swept %d enabled extension(s)\n", len(ids))
			return nil
		},
	}
}

// parseCapabilityFlags converts --cap and --network flag values to a
// capability set. Each cap is resource:action[,action...].
func parseCapabilityFlags(caps, origins []string) (extension.CapabilitySet, error) {
	set := extension.CapabilitySet{Network: origins}
	if len(caps) > 0 {
		set.Resources = make(map[extension.ResourceKind][]extension.Action, len(caps))
	}

	for _, spec := range caps {
		resource, actions, ok := strings.Cut(spec, ":")
		if !ok || resource == "" || actions == "" {
			return extension.CapabilitySet{}, praxiserr.Errorf(praxiserr.CodeCLIInputInvalid,
				"capability %q must have the form resource:action[,action...]", spec)
		}
		kind := extension.ResourceKind(resource)
		for _, action := range strings.Split(actions, ",") {
			action = strings.TrimSpace(action)
			if action == "" {
				return extension.CapabilitySet{}, praxiserr.Errorf(praxiserr.CodeCLIInputInvalid,
					"capability %q names an empty action", spec)
			}
			set.Resources[kind] = append(set.Resources[kind], extension.Action(action))
		}
	}

	return set, nil
}

func formatCapabilitySet(set extension.CapabilitySet) string {
	if set.IsEmpty() {
		return "(none)"
	}

	kinds := make([]extension.ResourceKind, 0, len(set.Resources))
	for kind := range set.Resources {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	var parts []string
	for _, kind := range kinds {
		actions := set.Resources[kind]
		strs := make([]string, len(actions))
		for i, a := range actions {
			strs[i] = string(a)
		}
		parts = append(parts, fmt.Sprintf("%s:%s", kind, strings.Join(strs, ",")))
	}
	if len(set.Network) > 0 {
		parts = append(parts, "network:"+strings.Join(set.Network, ","))
	}
	return strings.Join(parts, " ")
}

// printRisk prints the advisory risk assessment for a capability set.
func printRisk(cmd *cobra.Command, set extension.CapabilitySet) {
	assessment := capability.AssessRisk(set)
	fmt.Fprintf(cmd.OutOrStdout(), "risk: %s\n", assessment.Overall)
	for _, detail := range assessment.Details {
		fmt.Fprintf(cmd.OutOrStdout(), "  [%s] %s\n", detail.Level, detail.Message)
	}
}
