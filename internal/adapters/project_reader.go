package adapters

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"korebuild-tools/internal/ports"
	"korebuild-tools/internal/types"
)

const directoryBuildProps = "Directory.Build.props"

// ProjectReaderAdapter performs a design-time evaluation of SDK-style
// projects: properties, imports, conditions and PackageReference items.
// Parsed documents are cached by path and modification time.
type ProjectReaderAdapter struct {
	mu    sync.Mutex
	cache map[string]projectDocument
}

type projectDocument struct {
	modTime time.Time
	root    *xmlNode
}

func NewProjectReaderAdapter() *ProjectReaderAdapter {
	return &ProjectReaderAdapter{cache: map[string]projectDocument{}}
}

type packageItem struct {
	id                  string
	version             string
	isImplicitlyDefined bool
	noWarn              []string
}

// evaluation is the state of one pass over a project and its imports.
type evaluation struct {
	ctx     context.Context
	reader  *ProjectReaderAdapter
	bag     *propertyBag
	items   map[string]*packageItem
	order   []string
	visited map[string]struct{}
}

func (a *ProjectReaderAdapter) ReadProject(ctx context.Context, path string, properties map[string]string) (types.ProjectInfo, error) {
	fullPath, err := filepath.Abs(path)
	if err != nil {
		return types.ProjectInfo{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("invalid project path").
			WithCause(err)
	}
	outer, err := a.evaluate(ctx, fullPath, properties)
	if err != nil {
		return types.ProjectInfo{}, err
	}
	frameworks := splitList(outer.bag.Get("TargetFrameworks"), ";")
	if len(frameworks) == 0 {
		if single := strings.TrimSpace(outer.bag.Get("TargetFramework")); single != "" {
			frameworks = []string{single}
		}
	}
	if len(frameworks) == 0 {
		return types.ProjectInfo{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("%s: project declares no TargetFramework or TargetFrameworks", fullPath))
	}

	info := types.ProjectInfo{FullPath: fullPath}
	for _, framework := range frameworks {
		if err := ctx.Err(); err != nil {
			return types.ProjectInfo{}, err
		}
		globals := map[string]string{}
		for key, value := range properties {
			if !strings.EqualFold(key, "TargetFramework") {
				globals[key] = value
			}
		}
		globals["TargetFramework"] = framework
		inner, err := a.evaluate(ctx, fullPath, globals)
		if err != nil {
			return types.ProjectInfo{}, err
		}
		info.Frameworks = append(info.Frameworks, types.ProjectFrameworkInfo{
			TargetFramework: framework,
			Dependencies:    inner.references(),
		})
	}
	log.Ctx(ctx).Debug().Str("project", fullPath).Strs("frameworks", frameworks).Msg("project evaluated")
	return info, nil
}

func (a *ProjectReaderAdapter) evaluate(ctx context.Context, fullPath string, globals map[string]string) (*evaluation, error) {
	e := &evaluation{
		ctx:     ctx,
		reader:  a,
		bag:     newPropertyBag(globals),
		items:   map[string]*packageItem{},
		visited: map[string]struct{}{},
	}
	dir := filepath.Dir(fullPath)
	e.bag.Set("MSBuildProjectFullPath", fullPath)
	e.bag.Set("MSBuildProjectDirectory", dir)
	e.bag.Set("MSBuildProjectName", strings.TrimSuffix(filepath.Base(fullPath), filepath.Ext(fullPath)))
	e.bag.Set("MSBuildProjectFile", filepath.Base(fullPath))

	if !strings.EqualFold(e.bag.Get("ImportDirectoryBuildProps"), "false") {
		if props, ok := findUpward(dir, directoryBuildProps); ok && props != fullPath {
			if err := e.importFile(props); err != nil {
				return nil, err
			}
		}
	}
	if err := e.importFile(fullPath); err != nil {
		return nil, err
	}
	return e, nil
}

func findUpward(dir string, name string) (string, bool) {
	for {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

func (a *ProjectReaderAdapter) load(path string) (*xmlNode, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("%s: project file not found", path)).
			WithCause(err)
	}
	a.mu.Lock()
	if doc, ok := a.cache[path]; ok && doc.modTime.Equal(info.ModTime()) {
		a.mu.Unlock()
		return doc.root, nil
	}
	a.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("%s: failed to read project file", path)).
			WithCause(err)
	}
	root, err := parseXMLTree(data)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("%s: malformed project file", path)).
			WithCause(err)
	}
	a.mu.Lock()
	a.cache[path] = projectDocument{modTime: info.ModTime(), root: root}
	a.mu.Unlock()
	return root, nil
}

func (e *evaluation) importFile(path string) error {
	if _, seen := e.visited[path]; seen {
		return nil
	}
	e.visited[path] = struct{}{}
	root, err := e.reader.load(path)
	if err != nil {
		return err
	}
	previous := e.bag.Get("MSBuildThisFileDirectory")
	e.bag.setReserved("MSBuildThisFileDirectory", filepath.Dir(path)+string(filepath.Separator))
	defer e.bag.setReserved("MSBuildThisFileDirectory", previous)
	return e.walk(root, path)
}

// condition reports whether node applies. A condition the evaluator cannot
// parse is treated as false so unrelated nodes do not fail the project.
func (e *evaluation) condition(node *xmlNode, file string) bool {
	raw, _ := node.Attr("Condition")
	ok, err := evaluateCondition(raw, e.bag, filepath.Dir(file))
	if err != nil {
		log.Ctx(e.ctx).Debug().Err(err).Str("file", file).Str("element", node.Name).
			Msg("unsupported condition, skipping element")
		return false
	}
	return ok
}

func (e *evaluation) walk(root *xmlNode, file string) error {
	for _, node := range root.Children {
		if !e.condition(node, file) {
			continue
		}
		switch {
		case node.Is("PropertyGroup"):
			e.properties(node, file)
		case node.Is("ItemGroup"):
			e.itemGroup(node, file)
		case node.Is("Import"):
			if err := e.importNode(node, file); err != nil {
				return err
			}
		case node.Is("ImportGroup"):
			if err := e.walk(node, file); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *evaluation) properties(group *xmlNode, file string) {
	for _, prop := range group.Children {
		if e.condition(prop, file) {
			e.bag.Set(prop.Name, e.bag.expand(strings.TrimSpace(prop.Text)))
		}
	}
}

// importNode follows relative and absolute imports. SDK imports are skipped;
// a missing import is an error unless guarded by a false condition.
func (e *evaluation) importNode(node *xmlNode, file string) error {
	if _, sdk := node.Attr("Sdk"); sdk {
		return nil
	}
	project, _ := node.Attr("Project")
	target := strings.TrimSpace(e.bag.expand(project))
	if target == "" {
		return nil
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(file), target)
	}
	if _, err := os.Stat(target); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("%s: imported project %s not found", file, target)).
			WithCause(err)
	}
	return e.importFile(filepath.Clean(target))
}

func (e *evaluation) itemGroup(group *xmlNode, file string) {
	for _, item := range group.Children {
		if !item.Is("PackageReference") {
			continue
		}
		if !e.condition(item, file) {
			continue
		}
		if include, has := item.Attr("Include"); has {
			for _, id := range splitList(e.bag.expand(include), ";") {
				e.include(id, item)
			}
		}
		if update, has := item.Attr("Update"); has {
			for _, id := range splitList(e.bag.expand(update), ";") {
				if existing, found := e.items[strings.ToLower(id)]; found {
					e.applyMetadata(existing, item)
				}
			}
		}
		if remove, has := item.Attr("Remove"); has {
			for _, id := range splitList(e.bag.expand(remove), ";") {
				delete(e.items, strings.ToLower(id))
			}
		}
	}
}

func (e *evaluation) include(id string, node *xmlNode) {
	key := strings.ToLower(id)
	item, ok := e.items[key]
	if !ok {
		item = &packageItem{id: id}
		e.items[key] = item
		e.order = append(e.order, key)
	}
	e.applyMetadata(item, node)
}

// metadata reads name from the attribute form or the child element form.
func (e *evaluation) metadata(node *xmlNode, name string) (string, bool) {
	if value, ok := node.Attr(name); ok {
		return e.bag.expand(value), true
	}
	if child, ok := node.Child(name); ok {
		return e.bag.expand(strings.TrimSpace(child.Text)), true
	}
	return "", false
}

func (e *evaluation) applyMetadata(item *packageItem, node *xmlNode) {
	if version, ok := e.metadata(node, "Version"); ok {
		item.version = strings.TrimSpace(version)
	}
	if implicit, ok := e.metadata(node, "IsImplicitlyDefined"); ok {
		item.isImplicitlyDefined = isTrue(implicit)
	}
	if noWarn, ok := e.metadata(node, "NoWarn"); ok {
		item.noWarn = splitList(noWarn, ";,")
	}
}

func (e *evaluation) references() map[string]types.PackageReferenceInfo {
	out := make(map[string]types.PackageReferenceInfo, len(e.items))
	keys := append([]string{}, e.order...)
	sort.Strings(keys)
	for _, key := range keys {
		item, ok := e.items[key]
		if !ok {
			continue
		}
		out[item.id] = types.PackageReferenceInfo{
			ID:                  item.id,
			Version:             item.version,
			IsImplicitlyDefined: item.isImplicitlyDefined,
			NoWarn:              item.noWarn,
		}
	}
	return out
}

var _ ports.ProjectReaderPort = (*ProjectReaderAdapter)(nil)
