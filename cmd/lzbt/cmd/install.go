// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nix-community/lanzaboote-go/internal/autoenrol"
	"github.com/nix-community/lanzaboote-go/internal/esp"
	"github.com/nix-community/lanzaboote-go/internal/generation"
	"github.com/nix-community/lanzaboote-go/internal/loaderconf"
	"github.com/nix-community/lanzaboote-go/internal/pesign"
	"github.com/nix-community/lanzaboote-go/internal/reconcile"
)

type installOptions struct {
	system                   string
	systemd                  string
	systemdBootLoaderConfig  string
	publicKeyPath            string
	privateKeyPath           string
	remoteSigningServerURL   string
	configurationLimit       int
	allowUnsigned            bool
	bootcountingInitialTries int
	dryRun                   bool
	bootedGeneration         uint64
	defaultGeneration        uint64
	autoEnroll               bool
}

var installOpts installOptions

var installCmd = &cobra.Command{
	Use:   "install <esp-mount-point>... -- <generation-link>...",
	Short: "Reconcile one or more ESPs against a set of generation links",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runInstall,
}

func init() {
	installCmd.Flags().StringVar(&installOpts.system, "system", "", "target triple of the system being installed")
	installCmd.Flags().StringVar(&installOpts.systemd, "systemd", "", "path to the first-stage loader distribution")
	installCmd.Flags().StringVar(&installOpts.systemdBootLoaderConfig, "systemd-boot-loader-config", "", "path to the generated loader.conf template")
	installCmd.Flags().StringVar(&installOpts.publicKeyPath, "public-key", "", "path to the local signing certificate")
	installCmd.Flags().StringVar(&installOpts.privateKeyPath, "private-key", "", "path to the local signing private key")
	installCmd.Flags().StringVar(&installOpts.remoteSigningServerURL, "remote-signing-server-url", "", "URL of a remote signing server, mutually exclusive with --public-key/--private-key")
	installCmd.Flags().IntVar(&installOpts.configurationLimit, "configuration-limit", 0, "keep at most N generations; 0 for unlimited")
	installCmd.Flags().BoolVar(&installOpts.allowUnsigned, "allow-unsigned", false, "permit writing an unsigned UKI when signing fails")
	installCmd.Flags().IntVar(&installOpts.bootcountingInitialTries, "bootcounting-initial-tries", -1, "initial tries-left suffix; negative disables boot counting")
	installCmd.Flags().BoolVar(&installOpts.dryRun, "dry-run", false, "plan and print without writing")
	installCmd.Flags().Uint64Var(&installOpts.bootedGeneration, "booted-generation", 0, "currently booted generation version, exempt from --configuration-limit")
	installCmd.Flags().Uint64Var(&installOpts.defaultGeneration, "default-generation", 0, "default generation version, exempt from --configuration-limit")
	installCmd.Flags().BoolVar(&installOpts.autoEnroll, "auto-enroll", false, "write a self-signed PK/KEK/db under /loader/keys/auto and force secure-boot-enroll")

	rootCmd.AddCommand(installCmd)
}

func runInstall(cmd *cobra.Command, args []string) error {
	o := installOpts

	if o.publicKeyPath != "" && o.remoteSigningServerURL != "" {
		return newExitError(3, fmt.Errorf("--public-key/--private-key and --remote-signing-server-url are mutually exclusive"))
	}

	espMountPoints, generationLinks := splitArgs(args)
	if len(espMountPoints) == 0 || len(generationLinks) == 0 {
		return newExitError(3, fmt.Errorf("at least one ESP mount point and one generation link are required"))
	}

	generations, err := resolveGenerations(generationLinks)
	if err != nil {
		return newExitError(3, err)
	}

	generations = generation.Cap(generations, o.configurationLimit, o.bootedGeneration, o.defaultGeneration)

	var signer pesign.Signer

	switch {
	case o.remoteSigningServerURL != "":
		signer = &pesign.RemoteSigner{ServerURL: o.remoteSigningServerURL, UserAgent: "lzbt"}
	case o.privateKeyPath != "":
		signer = &pesign.LocalSigner{PrivateKeyPath: o.privateKeyPath, CertificatePath: o.publicKeyPath}
	}

	var pcrPublicKey []byte

	if o.publicKeyPath != "" {
		pcrPublicKey, err = os.ReadFile(o.publicKeyPath)
		if err != nil {
			return newExitError(3, fmt.Errorf("reading PCR public key: %w", err))
		}
	}

	paths := make([]esp.Paths, 0, len(espMountPoints))
	for _, mountPoint := range espMountPoints {
		paths = append(paths, esp.NewPaths(mountPoint))
	}

	if o.dryRun {
		for _, g := range generations {
			fmt.Fprintln(cmd.OutOrStdout(), g.Describe())
		}

		return nil
	}

	logger := newLogger()

	engine := reconcile.NewEngine(reconcile.Config{
		Signer:        signer,
		AllowUnsigned: o.allowUnsigned,
		Logger:        logger,
	})

	results, runErr := engine.Run(context.Background(), reconcile.Request{
		Generations:       generations,
		ESPs:              paths,
		StubPath:          o.systemd,
		PCRSigningKeyPath: o.privateKeyPath,
		PCRPublicKey:      pcrPublicKey,
		InitialTries:      o.bootcountingInitialTries,
	})

	for _, p := range paths {
		if err := writeLoaderConf(p, o); err != nil {
			if runErr == nil {
				runErr = err
			}
		}

		if o.autoEnroll && o.publicKeyPath != "" && o.privateKeyPath != "" {
			if err := writeAutoEnroll(p, o); err != nil && runErr == nil {
				runErr = err
			}
		}
	}

	if runErr != nil {
		if len(results) > 0 {
			return newExitError(2, runErr)
		}

		return newExitError(1, runErr)
	}

	return nil
}

// splitArgs divides positional arguments into ESP mount points (existing
// directories that contain loader/ or pass looksLikeESP) and generation
// links (everything else),
// mirroring the CLI's "<esp-mount-point>... <generation-link>..." grammar
// without requiring an explicit separator for the common case.
func splitArgs(args []string) (espMountPoints, generationLinks []string) {
	for _, a := range args {
		if info, err := os.Stat(a); err == nil && info.IsDir() {
			if _, statErr := os.Stat(filepath.Join(a, "loader")); statErr == nil || looksLikeESP(a) {
				espMountPoints = append(espMountPoints, a)

				continue
			}
		}

		generationLinks = append(generationLinks, a)
	}

	return espMountPoints, generationLinks
}

// looksLikeESP reports whether path already has this system's fixed
// directory layout, or is plausibly an empty mount point awaiting it.
func looksLikeESP(path string) bool {
	entries, err := os.ReadDir(path)
	if err != nil {
		return false
	}

	if len(entries) == 0 {
		return true
	}

	for _, e := range entries {
		if e.Name() == "EFI" || e.Name() == "loader" {
			return true
		}
	}

	return false
}

// resolveGenerations resolves each generation-link argument into its full
// set of bootable entries, including specialisations.
func resolveGenerations(links []string) ([]generation.Generation, error) {
	var out []generation.Generation

	for _, linkPath := range links {
		version, err := generation.ParseLinkVersion(filepath.Base(linkPath))
		if err != nil {
			return nil, err
		}

		toplevel, err := filepath.EvalSymlinks(linkPath)
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", linkPath, err)
		}

		info, statErr := os.Lstat(linkPath)

		link := generation.GenerationLink{Version: version, Path: linkPath}

		if statErr == nil {
			mtime := info.ModTime()
			link.BuildTime = &mtime
		}

		g, err := generation.FromLink(link, toplevel)
		if err != nil {
			return nil, fmt.Errorf("reading bootspec for %s: %w", linkPath, err)
		}

		bootable, err := generation.ExpandSpecialisations(g, toplevel)
		if err != nil {
			return nil, err
		}

		out = append(out, bootable...)
	}

	return out, nil
}

func writeLoaderConf(paths esp.Paths, o installOptions) error {
	enroll := loaderconf.SecureBootEnroll("")
	if o.autoEnroll {
		enroll = loaderconf.SecureBootEnrollForce
	}

	if o.systemdBootLoaderConfig != "" {
		return loaderconf.WriteFromTemplate(o.systemdBootLoaderConfig, paths.LoaderConf, enroll)
	}

	return loaderconf.Write(paths.LoaderConf, loaderconf.Config{SecureBootEnroll: enroll})
}

func writeAutoEnroll(paths esp.Paths, o installOptions) error {
	kp := &autoenrol.KeyPair{PrivateKeyPath: o.privateKeyPath, CertificatePath: o.publicKeyPath}
	if err := kp.Load(); err != nil {
		return err
	}

	certDER := kp.Certificate().Raw

	entries, err := autoenrol.Generate(certDER, kp)
	if err != nil {
		return err
	}

	return autoenrol.Install(paths.AutoEnrollKeys, entries)
}
