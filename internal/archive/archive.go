package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	// directoryMode is used for directories created during extraction.
	directoryMode os.FileMode = 0o755

	// maxArchiveBytes caps the total bytes written across all entries.
	maxArchiveBytes int64 = 1 << 30

	// maxEntryBytes caps a single extracted entry.
	maxEntryBytes int64 = 512 << 20
)

var (
	errEntryOutsideDestination = errors.New("archive entry escapes destination directory")
	errEntryTooLarge           = errors.New("archive entry too large")
	errArchiveTooLarge         = errors.New("archive exceeds extraction size limit")
	errInstallerNotFound       = errors.New("installer not found in package")
	errInstallerAmbiguous      = errors.New("more than one installer candidate in package")
)

// Extract unpacks a verified zip archive fully into destDir.
// Entry paths are contained within destDir and total extracted size is
// bounded, so a hostile archive cannot write outside the tree or fill the disk.
func Extract(archivePath, destDir string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open archive %s: %w", archivePath, err)
	}

	defer func() {
		_ = reader.Close()
	}()

	cleanDest := filepath.Clean(destDir)

	var totalWritten int64

	for _, entry := range reader.File {
		if err = extractEntry(entry, cleanDest, &totalWritten); err != nil {
			return fmt.Errorf("extract %s: %w", entry.Name, err)
		}
	}

	return nil
}

// extractEntry writes a single zip entry beneath destDir.
func extractEntry(entry *zip.File, destDir string, totalWritten *int64) error {
	target := filepath.Join(destDir, filepath.Clean(filepath.FromSlash(entry.Name)))
	if !isPathWithinDir(target, destDir) {
		return fmt.Errorf("%w: %s", errEntryOutsideDestination, entry.Name)
	}

	info := entry.FileInfo()
	if info.IsDir() {
		return os.MkdirAll(target, directoryMode)
	}

	if entry.UncompressedSize64 > uint64(maxEntryBytes) {
		return fmt.Errorf("%w: %d bytes", errEntryTooLarge, entry.UncompressedSize64)
	}

	if err := os.MkdirAll(filepath.Dir(target), directoryMode); err != nil {
		return fmt.Errorf("create parent directory: %w", err)
	}

	source, err := entry.Open()
	if err != nil {
		return fmt.Errorf("open entry: %w", err)
	}

	defer func() {
		_ = source.Close()
	}()

	mode := info.Mode().Perm()
	if mode == 0 {
		// Some archivers omit permissions entirely.
		mode = 0o644
	}

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}

	written, err := io.Copy(out, io.LimitReader(source, maxEntryBytes+1))
	closeErr := out.Close()

	if err != nil {
		return fmt.Errorf("write file: %w", err)
	}

	if closeErr != nil {
		return fmt.Errorf("close file: %w", closeErr)
	}

	if written > maxEntryBytes {
		return fmt.Errorf("%w: %s", errEntryTooLarge, entry.Name)
	}

	*totalWritten += written
	if *totalWritten > maxArchiveBytes {
		return errArchiveTooLarge
	}

	return nil
}

// isPathWithinDir reports whether path stays inside dir after cleaning.
func isPathWithinDir(path, dir string) bool {
	return path == dir || strings.HasPrefix(path, dir+string(os.PathSeparator))
}

// LocateInstaller searches the extracted tree for the nested installer file.
// Release archives ship exactly one; zero matches is fatal and so is more
// than one, since picking an arbitrary candidate would run the wrong program.
func LocateInstaller(root, installerName string) (string, error) {
	var matches []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !d.IsDir() && d.Name() == installerName {
			matches = append(matches, path)
		}

		return nil
	})
	if err != nil {
		return "", fmt.Errorf("search extracted tree: %w", err)
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: no %s under %s", errInstallerNotFound, installerName, root)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%w: %s", errInstallerAmbiguous, strings.Join(matches, ", "))
	}
}
