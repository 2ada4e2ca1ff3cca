package idmap

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"io"
	"strconv"

	"github.com/pkg/errors"
	"github.com/shogo82148/androidbinary"
)

// ErrNotOverlay marks an apk whose manifest has no overlay element.
// Scans skip those; everything else that fails parsing is reported.
var ErrNotOverlay = errors.New("manifest has no overlay element")

// OverlayManifest is the overlay-relevant slice of an apk manifest.
type OverlayManifest struct {
	PackageName   string
	TargetPackage string
	TargetName    string
	IsStatic      bool
	Priority      int
	HasCode       bool
}

type manifestXML struct {
	Package string `xml:"package,attr"`
	Overlay *struct {
		TargetPackage string `xml:"targetPackage,attr"`
		TargetName    string `xml:"targetName,attr"`
		IsStatic      string `xml:"isStatic,attr"`
		Priority      string `xml:"priority,attr"`
	} `xml:"overlay"`
	Application struct {
		HasCode string `xml:"hasCode,attr"`
	} `xml:"application"`
}

// ParseOverlayManifest reads AndroidManifest.xml out of an apk and
// returns its overlay declaration. Archives without an <overlay>
// element fail with ErrNotOverlay, which is how scan tells overlays
// apart.
func ParseOverlayManifest(apkPath string) (*OverlayManifest, error) {
	data, err := readZipMember(apkPath, "AndroidManifest.xml")
	if err != nil {
		return nil, err
	}
	plain := data
	if isBinaryXML(data) {
		xmlFile, err := androidbinary.NewXMLFile(bytes.NewReader(data))
		if err != nil {
			return nil, errors.Wrapf(err, "parse binary manifest of %s", apkPath)
		}
		plain, err = io.ReadAll(xmlFile.Reader())
		if err != nil {
			return nil, errors.Wrapf(err, "decode manifest of %s", apkPath)
		}
	}
	m, err := parseOverlayXML(plain)
	if err != nil {
		return nil, errors.Wrapf(err, "manifest of %s", apkPath)
	}
	return m, nil
}

// isBinaryXML reports whether data opens with the compiled-xml chunk
// type. Apks built by the platform toolchain carry the binary form;
// manifests taken straight from a source tree are plain text.
func isBinaryXML(data []byte) bool {
	return len(data) >= 2 && data[0] == 0x03 && data[1] == 0x00
}

// parseOverlayXML extracts the overlay declaration from manifest text.
func parseOverlayXML(data []byte) (*OverlayManifest, error) {
	var m manifestXML
	if err := xml.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, "unmarshal manifest")
	}
	if m.Overlay == nil {
		return nil, ErrNotOverlay
	}
	if m.Overlay.TargetPackage == "" {
		return nil, errors.New("overlay element missing targetPackage")
	}

	out := &OverlayManifest{
		PackageName:   m.Package,
		TargetPackage: m.Overlay.TargetPackage,
		TargetName:    m.Overlay.TargetName,
		IsStatic:      m.Overlay.IsStatic == "true",
		HasCode:       m.Application.HasCode == "true",
	}
	if m.Overlay.Priority != "" {
		p, err := strconv.Atoi(m.Overlay.Priority)
		if err != nil {
			return nil, errors.Wrapf(err, "overlay priority %q", m.Overlay.Priority)
		}
		out.Priority = p
	}
	return out, nil
}

func readZipMember(path, name string) ([]byte, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open apk %s", path)
	}
	defer r.Close()
	for _, f := range r.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, errors.Wrapf(err, "open %s in %s", name, path)
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, errors.Errorf("no %s in %s", name, path)
}
