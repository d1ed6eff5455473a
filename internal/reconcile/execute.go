// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/nix-community/lanzaboote-go/internal/esp"
	"github.com/nix-community/lanzaboote-go/internal/pesign"
)

// Config holds the installer-wide settings the engine needs to sign and
// write UKIs; it carries no per-ESP or per-generation state.
type Config struct {
	Signer pesign.Signer
	// AllowUnsigned permits writing an unsigned UKI when signing fails,
	// used only for first-boot auto-provisioning.
	AllowUnsigned bool
	Logger        *slog.Logger
}

// Engine reconciles one or more ESPs against a desired artifact set.
type Engine struct {
	Config
}

// NewEngine constructs a reconciliation engine.
func NewEngine(cfg Config) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Engine{Config: cfg}
}

// Result summarises what one ESP reconciliation changed.
type Result struct {
	Installed []string
	Removed   []string
}

// ReconcileESP diffs one ESP's observed inventory against the desired
// artifact set, installs what is missing, and removes what is no longer
// wanted, honouring I4 (never remove a detached file another installed UKI
// still references).
func (e *Engine) ReconcileESP(ctx context.Context, paths esp.Paths, artifacts []Artifact) (Result, error) {
	if err := ensureLayout(paths); err != nil {
		return Result{}, err
	}

	inventory, err := esp.ReadInventory(paths)
	if err != nil {
		return Result{}, fmt.Errorf("reading inventory of %s: %w", paths.ESP, err)
	}

	have := map[string]bool{}

	for _, u := range inventory.UKIs {
		// I2+I3: a UKI counts as "have" only if its referenced detached
		// files are actually present on this ESP *and* their on-disk bytes
		// still hash to the value the UKI's .linuxh/.initrdh sections
		// embed; otherwise it is scheduled for reinstall below, handling
		// corruption and partial prior failures per the
		// reinstall-over-remove resolution of Open Question (ii).
		if u.KernelRef != "" && u.InitrdRef != "" &&
			inventory.DetachedKernels[filepath.Base(u.KernelRef)] > 0 &&
			inventory.DetachedInitrds[filepath.Base(u.InitrdRef)] > 0 &&
			detachedFileMatchesHash(paths, u.KernelRef, u.KernelHash) &&
			detachedFileMatchesHash(paths, u.InitrdRef, u.InitrdHash) {
			have[u.Filename] = true
		}
	}

	want := make(map[string]Artifact, len(artifacts))
	for _, a := range artifacts {
		want[a.Filename] = a
	}

	var result Result

	for filename, artifact := range want {
		if have[filename] {
			continue
		}

		if err := e.installOne(ctx, paths, artifact, filename); err != nil {
			return result, fmt.Errorf("installing %s: %w", filename, err)
		}

		result.Installed = append(result.Installed, filename)
	}

	for _, u := range inventory.UKIs {
		if _, ok := want[u.Filename]; ok {
			continue
		}

		e.Logger.Info("removing stale UKI", "esp", paths.ESP, "filename", u.Filename)

		if err := os.Remove(u.Path); err != nil && !os.IsNotExist(err) {
			return result, fmt.Errorf("removing stale UKI %s: %w", u.Filename, err)
		}

		result.Removed = append(result.Removed, u.Filename)
	}

	removedArtefacts, err := gcDetached(paths, want)
	if err != nil {
		return result, err
	}

	result.Removed = append(result.Removed, removedArtefacts...)

	return result, nil
}

// installOne writes a UKI's prerequisites, then the UKI itself, in the
// order invariant I5 mandates: detached files fsync'd before the UKI's
// rename commits.
func (e *Engine) installOne(ctx context.Context, paths esp.Paths, artifact Artifact, filename string) error {
	if err := copyContentAddressed(artifact.KernelPath, paths.KernelPath(artifact.KernelHash), artifact.KernelHash); err != nil {
		return fmt.Errorf("writing detached kernel: %w", err)
	}

	if err := copyContentAddressed(artifact.InitrdPath, paths.InitrdPath(artifact.InitrdHash), artifact.InitrdHash); err != nil {
		return fmt.Errorf("writing detached initrd: %w", err)
	}

	unsigned, err := os.ReadFile(artifact.UnsignedUKIPath)
	if err != nil {
		return fmt.Errorf("reading assembled UKI: %w", err)
	}

	signed := unsigned

	if e.Signer != nil {
		signed, err = e.Signer.Sign(ctx, unsigned)
		if err != nil {
			if !e.AllowUnsigned {
				return fmt.Errorf("%w: %v", pesign.ErrSignFailed, err)
			}

			e.Logger.Warn("installing unsigned UKI", "filename", filename, "error", err)

			signed = unsigned
		}
	}

	return writeAtomic(paths.UKIPath(filename), signed)
}

// detachedFileMatchesHash re-hashes the detached file a UKI's section
// reference names and reports whether it still matches the embedded hash,
// catching in-place corruption that presence-and-size checks alone miss.
func detachedFileMatchesHash(paths esp.Paths, ref, wantHash string) bool {
	if wantHash == "" {
		return false
	}

	f, err := os.Open(filepath.Join(paths.NixOS, filepath.Base(ref)))
	if err != nil {
		return false
	}
	defer f.Close() //nolint:errcheck

	gotHash, err := esp.HashReader(f)
	if err != nil {
		return false
	}

	return gotHash == wantHash
}

// copyContentAddressed copies src to dst unless dst already exists *and*
// its bytes still hash to wantHash: dst is named by that hash, so a clean
// match means the bytes already match and the copy is skipped, making
// repeated installs of an unchanged generation a no-op. A name/content
// mismatch (in-place corruption) forces a rewrite even though dst exists.
func copyContentAddressed(src, dst, wantHash string) error {
	if f, err := os.Open(dst); err == nil {
		gotHash, hashErr := esp.HashReader(f)
		f.Close() //nolint:errcheck

		if hashErr == nil && gotHash == wantHash {
			return nil
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close() //nolint:errcheck

	tmp := dst + ".tmp"

	out, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close() //nolint:errcheck,gosec
		os.Remove(tmp) //nolint:errcheck

		return err
	}

	if err := out.Sync(); err != nil {
		out.Close() //nolint:errcheck,gosec
		os.Remove(tmp) //nolint:errcheck

		return err
	}

	if err := out.Close(); err != nil {
		os.Remove(tmp) //nolint:errcheck

		return err
	}

	return os.Rename(tmp, dst)
}

// writeAtomic writes data to a temp file in dst's directory, fsyncs it, then
// renames it into place, so a crash never leaves a partially-written file
// at the final path.
func writeAtomic(dst string, data []byte) error {
	tmp := dst + ".tmp"

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	if _, err := f.Write(data); err != nil {
		f.Close() //nolint:errcheck,gosec
		os.Remove(tmp) //nolint:errcheck

		return err
	}

	if err := f.Sync(); err != nil {
		f.Close() //nolint:errcheck,gosec
		os.Remove(tmp) //nolint:errcheck

		return err
	}

	if err := f.Close(); err != nil {
		os.Remove(tmp) //nolint:errcheck

		return err
	}

	return os.Rename(tmp, dst)
}

// ensureLayout creates the fixed ESP directory structure if absent.
func ensureLayout(paths esp.Paths) error {
	for _, dir := range paths.Iter() {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	return nil
}

// gcDetached removes detached kernel/initrd files no longer referenced by
// any wanted UKI, enforcing I4: a file referenced by a UKI this reconcile
// is keeping is never touched, even if that UKI wasn't just installed.
func gcDetached(paths esp.Paths, want map[string]Artifact) ([]string, error) {
	referenced := map[string]bool{}

	for _, a := range want {
		referenced[filepath.Base(a.KernelRef)] = true
		referenced[filepath.Base(a.InitrdRef)] = true
	}

	return gcReferenced(paths, referenced)
}

// gcReferenced removes every detached kernel/initrd file under paths.NixOS
// whose filename is not a key of referenced.
func gcReferenced(paths esp.Paths, referenced map[string]bool) ([]string, error) {
	inventory, err := esp.ReadInventory(paths)
	if err != nil {
		return nil, fmt.Errorf("re-reading inventory for gc: %w", err)
	}

	var removed []string

	for name := range inventory.DetachedKernels {
		if referenced[name] {
			continue
		}

		if err := os.Remove(filepath.Join(paths.NixOS, name)); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("removing orphaned kernel %s: %w", name, err)
		}

		removed = append(removed, name)
	}

	for name := range inventory.DetachedInitrds {
		if referenced[name] {
			continue
		}

		if err := os.Remove(filepath.Join(paths.NixOS, name)); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("removing orphaned initrd %s: %w", name, err)
		}

		removed = append(removed, name)
	}

	return removed, nil
}
