package archive

import (
	"archive/tar"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/youwol/datamanager/kernel/model"
)

const MetadataVersion = "v1"

// Creator collects directories and files, then packs them with a metadata.json into a
// gzipped tarball.
type Creator struct {
	workDir  string
	jobUuid  string
	id       string
	items    map[string]string
	order    []string
	metadata map[string]interface{}
}

func NewCreator(workDir, jobUuid string) *Creator {
	id := uuid.NewString()
	return &Creator{
		workDir: workDir,
		jobUuid: jobUuid,
		id:      id,
		items:   make(map[string]string),
		metadata: map[string]interface{}{
			"version": MetadataVersion,
			"job":     jobUuid,
			"archive": id,
		},
	}
}

func (c *Creator) Id() string {
	return c.id
}

// AddItem registers path (file or directory) under name at the root of the archive.
func (c *Creator) AddItem(path, name string) {
	if _, found := c.items[name]; !found {
		c.order = append(c.order, name)
	}
	c.items[name] = path
}

func (c *Creator) AddMetadata(key string, value interface{}) {
	c.metadata[key] = value
}

func (c *Creator) Metadata() map[string]interface{} {
	return c.metadata
}

// Finalize writes the archive in the work directory and returns its path.
func (c *Creator) Finalize() (string, error) {
	prefix := fmt.Sprintf("%s_%s", c.jobUuid, c.id)
	metadataPath := filepath.Join(c.workDir, prefix+"_"+string(model.ArchiveMetadata))
	data, err := json.Marshal(c.metadata)
	if err != nil {
		return "", errors.Wrap(err, "unable to marshal archive metadata")
	}
	if err := os.WriteFile(metadataPath, data, 0644); err != nil {
		return "", errors.Wrap(err, "unable to write archive metadata")
	}

	path := filepath.Join(c.workDir, prefix+".tgz")
	f, err := os.Create(path)
	if err != nil {
		return "", errors.Wrapf(err, "unable to create archive '%s'", path)
	}
	defer func() { _ = f.Close() }()

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)
	for _, name := range c.order {
		logrus.Infof("adding '%s' as '%s'", c.items[name], name)
		if err := addTree(tw, c.items[name], name); err != nil {
			return "", err
		}
	}
	if err := addTree(tw, metadataPath, string(model.ArchiveMetadata)); err != nil {
		return "", err
	}
	if err := tw.Close(); err != nil {
		return "", errors.Wrap(err, "unable to close tar stream")
	}
	if err := gz.Close(); err != nil {
		return "", errors.Wrap(err, "unable to close gzip stream")
	}
	if err := f.Close(); err != nil {
		return "", errors.Wrapf(err, "unable to close archive '%s'", path)
	}
	return path, nil
}

func addTree(tw *tar.Writer, root, name string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return errors.Wrapf(err, "unable to walk '%s'", path)
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		arcname := filepath.ToSlash(filepath.Join(name, rel))

		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return errors.Wrapf(err, "unable to build header of '%s'", path)
		}
		header.Name = arcname
		if info.IsDir() {
			header.Name += "/"
		}
		if err := tw.WriteHeader(header); err != nil {
			return errors.Wrapf(err, "unable to write header of '%s'", arcname)
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		src, err := os.Open(path)
		if err != nil {
			return errors.Wrapf(err, "unable to open '%s'", path)
		}
		defer func() { _ = src.Close() }()
		if _, err := io.Copy(tw, src); err != nil {
			return errors.Wrapf(err, "unable to add '%s'", path)
		}
		return nil
	})
}

// Extract unpacks the entries below item into dest and returns how many files were written.
func Extract(archivePath, dest string, item model.ArchiveItem) (int, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return 0, errors.Wrapf(err, "unable to open archive '%s'", archivePath)
	}
	defer func() { _ = f.Close() }()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return 0, errors.Wrapf(err, "archive '%s' is not gzipped", archivePath)
	}
	tr := tar.NewReader(gz)

	prefix := string(item) + "/"
	count := 0
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return count, errors.Wrapf(err, "unable to read archive '%s'", archivePath)
		}
		if !strings.HasPrefix(header.Name, prefix) {
			continue
		}
		target := filepath.Join(dest, filepath.FromSlash(header.Name))
		if !strings.HasPrefix(target, filepath.Clean(dest)+string(os.PathSeparator)) {
			return count, errors.Errorf("entry '%s' escapes destination", header.Name)
		}
		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return count, errors.Wrapf(err, "unable to create '%s'", target)
			}
		case tar.TypeReg:
			if err := writeEntry(tr, target, os.FileMode(header.Mode).Perm()); err != nil {
				return count, err
			}
			count++
		default:
			logrus.Warnf("skipping entry '%s' of type %c", header.Name, header.Typeflag)
		}
	}
	return count, nil
}

func writeEntry(r io.Reader, target string, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return errors.Wrapf(err, "unable to create '%s'", filepath.Dir(target))
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return errors.Wrapf(err, "unable to create '%s'", target)
	}
	if _, err := io.Copy(out, r); err != nil {
		_ = out.Close()
		return errors.Wrapf(err, "unable to write '%s'", target)
	}
	return out.Close()
}

// Entries lists the names of every entry of the archive, sorted.
func Entries(archivePath string) ([]string, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open archive '%s'", archivePath)
	}
	defer func() { _ = f.Close() }()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, errors.Wrapf(err, "archive '%s' is not gzipped", archivePath)
	}
	tr := tar.NewReader(gz)
	var names []string
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "unable to read archive '%s'", archivePath)
		}
		names = append(names, header.Name)
	}
	sort.Strings(names)
	return names, nil
}
