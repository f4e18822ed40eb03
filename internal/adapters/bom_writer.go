package adapters

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"korebuild-tools/internal/ports"
	"korebuild-tools/internal/types"
)

// BOMWriterAdapter writes an SPDX 2.3 JSON document: one package per
// artifact, one per resolved dependency, linked with DEPENDS_ON.
type BOMWriterAdapter struct {
	ToolVersion string
	Now         func() time.Time
}

func NewBOMWriterAdapter(toolVersion string) BOMWriterAdapter {
	return BOMWriterAdapter{ToolVersion: toolVersion, Now: time.Now}
}

type spdxCreationInfo struct {
	Created  string   `json:"created"`
	Creators []string `json:"creators"`
}

type spdxPackage struct {
	SPDXID           string `json:"SPDXID"`
	Name             string `json:"name"`
	VersionInfo      string `json:"versionInfo"`
	DownloadLocation string `json:"downloadLocation"`
	LicenseConcluded string `json:"licenseConcluded"`
	LicenseDeclared  string `json:"licenseDeclared"`
	Supplier         string `json:"supplier"`
}

type spdxRelationship struct {
	SpdxElementID      string `json:"spdxElementId"`
	RelationshipType   string `json:"relationshipType"`
	RelatedSpdxElement string `json:"relatedSpdxElement"`
}

type spdxDocument struct {
	SPDXVersion       string             `json:"SPDXVersion"`
	DataLicense       string             `json:"DataLicense"`
	SPDXID            string             `json:"SPDXID"`
	Name              string             `json:"name"`
	DocumentNamespace string             `json:"documentNamespace"`
	CreationInfo      spdxCreationInfo   `json:"creationInfo"`
	Packages          []spdxPackage      `json:"packages"`
	Relationships     []spdxRelationship `json:"relationships"`
	DocumentDescribes []string           `json:"documentDescribes"`
}

func (a BOMWriterAdapter) WriteBOM(path string, artifacts []types.BOMArtifact) error {
	if strings.TrimSpace(path) == "" {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("bom path is empty")
	}
	now := time.Now
	if a.Now != nil {
		now = a.Now
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	creator := "Tool: korebuild-tools"
	if version := strings.TrimSpace(a.ToolVersion); version != "" {
		creator += "-" + version
	}
	doc := spdxDocument{
		SPDXVersion:       "SPDX-2.3",
		DataLicense:       "CC0-1.0",
		SPDXID:            "SPDXRef-DOCUMENT",
		Name:              fmt.Sprintf("korebuild-tools %s", name),
		DocumentNamespace: fmt.Sprintf("https://korebuild.dev/spdx/%s", name),
		CreationInfo: spdxCreationInfo{
			Created:  now().UTC().Format(time.RFC3339),
			Creators: []string{creator},
		},
		Packages:          []spdxPackage{},
		Relationships:     []spdxRelationship{},
		DocumentDescribes: []string{},
	}

	ordered := append([]types.BOMArtifact(nil), artifacts...)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].ID < ordered[j].ID
	})
	seen := map[string]struct{}{}
	addPackage := func(pkg spdxPackage) {
		if _, ok := seen[pkg.SPDXID]; ok {
			return
		}
		seen[pkg.SPDXID] = struct{}{}
		doc.Packages = append(doc.Packages, pkg)
	}
	for _, artifact := range ordered {
		artifactID := spdxPackageID(artifact.ID, artifact.Version)
		addPackage(newSPDXPackage(artifactID, artifact.ID, artifact.Version))
		doc.DocumentDescribes = append(doc.DocumentDescribes, artifactID)
		doc.Relationships = append(doc.Relationships, spdxRelationship{
			SpdxElementID:      "SPDXRef-DOCUMENT",
			RelationshipType:   "DESCRIBES",
			RelatedSpdxElement: artifactID,
		})
		deps := append([]types.BOMDependency(nil), artifact.Dependencies...)
		sort.Slice(deps, func(i, j int) bool {
			if deps[i].ID != deps[j].ID {
				return deps[i].ID < deps[j].ID
			}
			return deps[i].TargetFramework < deps[j].TargetFramework
		})
		for _, dep := range deps {
			depID := spdxPackageID(dep.ID, dep.Version)
			addPackage(newSPDXPackage(depID, dep.ID, dep.Version))
			doc.Relationships = append(doc.Relationships, spdxRelationship{
				SpdxElementID:      artifactID,
				RelationshipType:   "DEPENDS_ON",
				RelatedSpdxElement: depID,
			})
		}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to marshal bom payload").
			WithCause(err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create bom directory").
			WithCause(err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to write bom file").
			WithCause(err)
	}
	return nil
}

func newSPDXPackage(spdxID string, name string, version string) spdxPackage {
	return spdxPackage{
		SPDXID:           spdxID,
		Name:             name,
		VersionInfo:      version,
		DownloadLocation: "NOASSERTION",
		LicenseConcluded: "NOASSERTION",
		LicenseDeclared:  "NOASSERTION",
		Supplier:         "NOASSERTION",
	}
}

func spdxPackageID(name string, version string) string {
	seed := fmt.Sprintf("%s@%s", strings.ToLower(name), version)
	hash := sha256.Sum256([]byte(seed))
	return "SPDXRef-Package-" + hex.EncodeToString(hash[:8])
}

var _ ports.BOMPort = BOMWriterAdapter{}
