package vault

import "sync"

// Параметры ветвления R-дерева: узел разбивается, если в нём накапливается
// больше maxEntries записей; minEntries — нижняя граница после разбиения.
// Значения подобраны так же, как cellSize в оригинальном grid-индексе
// teacher-репозитория выбирался "по умолчанию" — без претензии на
// оптимальность, лишь чтобы типичные запросы оставались быстрыми.
const (
	maxEntries = 8
	minEntries = 4
)

// rtreeEntry — запись дерева: либо лист (payload = ObjectID), либо
// внутренний узел (child != nil).
type rtreeEntry struct {
	bounds Box
	id     ObjectID
	child  *rtreeNode
	isLeaf bool
}

type rtreeNode struct {
	entries []rtreeEntry
	leaf    bool
}

func (n *rtreeNode) bounds() Box {
	b := n.entries[0].bounds
	for _, e := range n.entries[1:] {
		b = b.Expand(e.bounds)
	}
	return b
}

// SpatialIndex — мутабельное 3D R-дерево по точечной геометрии, хранящее в
// листьях только ObjectID (§4.2: "The index stores only the UUID as
// payload; the full record lives in uuid_map"). Узлы небольшие и не
// зависят от размера полезной нагрузки объекта.
//
// Вставка/удаление амортизированно логарифмичны по числу записей;
// Intersects не даёт ни ложных срабатываний, ни пропусков (P2).
type SpatialIndex struct {
	mu   sync.RWMutex
	root *rtreeNode
	locs map[ObjectID]Point // текущая точка каждого ObjectID — нужна для Remove/Update без повторного поиска
}

// NewSpatialIndex создаёт пустой индекс.
func NewSpatialIndex() *SpatialIndex {
	return &SpatialIndex{
		root: &rtreeNode{leaf: true},
		locs: make(map[ObjectID]Point),
	}
}

// Insert добавляет точку id→point в индекс.
func (si *SpatialIndex) Insert(id ObjectID, point Point) {
	si.mu.Lock()
	defer si.mu.Unlock()
	si.insertLocked(id, point)
}

func (si *SpatialIndex) insertLocked(id ObjectID, point Point) {
	entry := rtreeEntry{bounds: boxFromPoint(point), id: id, isLeaf: true}
	leaf := si.chooseLeaf(si.root, entry.bounds)
	leaf.entries = append(leaf.entries, entry)
	si.locs[id] = point

	if len(leaf.entries) > maxEntries {
		si.splitAndPropagate(leaf)
	}
}

// chooseLeaf спускается от node до листа, на каждом уровне выбирая
// поддерево с наименьшим приростом объёма (классическая эвристика
// ChooseSubtree для R-деревьев).
func (si *SpatialIndex) chooseLeaf(node *rtreeNode, bounds Box) *rtreeNode {
	if node.leaf {
		return node
	}

	bestIdx := 0
	bestEnlargement := node.entries[0].bounds.enlargement(bounds)
	for i := 1; i < len(node.entries); i++ {
		enl := node.entries[i].bounds.enlargement(bounds)
		if enl < bestEnlargement {
			bestEnlargement = enl
			bestIdx = i
		}
	}

	child := node.entries[bestIdx].child
	found := si.chooseLeaf(child, bounds)
	node.entries[bestIdx].bounds = node.entries[bestIdx].bounds.Expand(bounds)
	return found
}

// splitAndPropagate реструктурирует дерево после переполнения листа.
// Это не полноценный R*-tree rebalance — просто детерминированное
// квадратичное разбиение (quadratic split), которого достаточно для
// контракта §4.2 (балансировка не специфицирована).
func (si *SpatialIndex) splitAndPropagate(overflowed *rtreeNode) {
	// Находим путь от корня до overflowed, чтобы после разбиения вставить
	// вторую половину туда же, где лежал родитель.
	path := si.findPath(si.root, overflowed)
	if path == nil {
		// overflowed это корень — создаём новый корень-обёртку
		a, b := quadraticSplit(overflowed.entries)
		overflowed.entries = a
		newSibling := &rtreeNode{entries: b, leaf: overflowed.leaf}
		newRoot := &rtreeNode{leaf: false}
		newRoot.entries = []rtreeEntry{
			{bounds: (&rtreeNode{entries: a}).bounds(), child: overflowed},
			{bounds: (&rtreeNode{entries: b}).bounds(), child: newSibling},
		}
		si.root = newRoot
		return
	}

	a, b := quadraticSplit(overflowed.entries)
	overflowed.entries = a
	newSibling := &rtreeNode{entries: b, leaf: overflowed.leaf}

	parent := path[len(path)-1]
	// Обновляем bounds записи, указывающей на overflowed, и добавляем
	// новую запись для newSibling.
	for i := range parent.entries {
		if parent.entries[i].child == overflowed {
			parent.entries[i].bounds = (&rtreeNode{entries: a}).bounds()
			break
		}
	}
	parent.entries = append(parent.entries, rtreeEntry{
		bounds: (&rtreeNode{entries: b}).bounds(),
		child:  newSibling,
	})

	if len(parent.entries) > maxEntries {
		si.splitAndPropagate(parent)
	}
}

// findPath возвращает путь узлов-родителей от корня (исключая корень, если
// target сам корень) до непосредственного родителя target, либо nil если
// target — корень.
func (si *SpatialIndex) findPath(node *rtreeNode, target *rtreeNode) []*rtreeNode {
	if node == target {
		return nil
	}
	if node.leaf {
		return nil
	}
	for _, e := range node.entries {
		if e.child == target {
			return []*rtreeNode{node}
		}
		if sub := si.findPath(e.child, target); sub != nil {
			return append([]*rtreeNode{node}, sub...)
		}
	}
	return nil
}

// quadraticSplit делит набор записей на две группы примерно поровну,
// минимизируя суммарный объём получившихся двух bounding box.
func quadraticSplit(entries []rtreeEntry) ([]rtreeEntry, []rtreeEntry) {
	// Выбираем пару "самых далёких" записей как затравки (PickSeeds).
	seedA, seedB := 0, 1
	worst := -1.0
	for i := 0; i < len(entries); i++ {
		for j := i + 1; j < len(entries); j++ {
			combined := entries[i].bounds.Expand(entries[j].bounds)
			waste := combined.volume() - entries[i].bounds.volume() - entries[j].bounds.volume()
			if waste > worst {
				worst = waste
				seedA, seedB = i, j
			}
		}
	}

	groupA := []rtreeEntry{entries[seedA]}
	groupB := []rtreeEntry{entries[seedB]}
	boundsA := entries[seedA].bounds
	boundsB := entries[seedB].bounds

	for i, e := range entries {
		if i == seedA || i == seedB {
			continue
		}
		enlA := boundsA.enlargement(e.bounds)
		enlB := boundsB.enlargement(e.bounds)
		if enlA < enlB || (enlA == enlB && len(groupA) <= len(groupB)) {
			groupA = append(groupA, e)
			boundsA = boundsA.Expand(e.bounds)
		} else {
			groupB = append(groupB, e)
			boundsB = boundsB.Expand(e.bounds)
		}
	}

	// Гарантируем минимальную заполненность групп.
	for len(groupA) < minEntries && len(groupB) > minEntries {
		moved := groupB[len(groupB)-1]
		groupB = groupB[:len(groupB)-1]
		groupA = append(groupA, moved)
	}
	for len(groupB) < minEntries && len(groupA) > minEntries {
		moved := groupA[len(groupA)-1]
		groupA = groupA[:len(groupA)-1]
		groupB = append(groupB, moved)
	}

	return groupA, groupB
}

// Remove удаляет id (расположенный в point) из индекса. Безопасно вызывать
// Remove для отсутствующего id — операция молча завершится без изменений.
func (si *SpatialIndex) Remove(id ObjectID, point Point) {
	si.mu.Lock()
	defer si.mu.Unlock()

	if _, ok := si.locs[id]; !ok {
		return
	}
	delete(si.locs, id)
	si.removeFrom(si.root, id, point)
}

func (si *SpatialIndex) removeFrom(node *rtreeNode, id ObjectID, point Point) bool {
	if node.leaf {
		for i, e := range node.entries {
			if e.id == id {
				node.entries = append(node.entries[:i], node.entries[i+1:]...)
				return true
			}
		}
		return false
	}

	for i := range node.entries {
		if !node.entries[i].bounds.Contains(point) {
			continue
		}
		if si.removeFrom(node.entries[i].child, id, point) {
			if len(node.entries[i].child.entries) > 0 {
				node.entries[i].bounds = node.entries[i].child.bounds()
			}
			return true
		}
	}
	return false
}

// Update переносит id из oldPoint в newPoint. Реализовано как remove+insert
// (§9 "No in-place point update") — R-дерево не поддерживает частичное
// перемещение записи без риска временно рассогласованных bounding box.
func (si *SpatialIndex) Update(id ObjectID, oldPoint, newPoint Point) {
	si.mu.Lock()
	defer si.mu.Unlock()
	si.removeFrom(si.root, id, oldPoint)
	delete(si.locs, id)
	si.insertLocked(id, newPoint)
}

// Intersects возвращает все ObjectID, чья точка лежит в замкнутой box
// (которая должна быть уже нормализована вызывающей стороной).
func (si *SpatialIndex) Intersects(box Box) []ObjectID {
	si.mu.RLock()
	defer si.mu.RUnlock()

	var result []ObjectID
	si.collect(si.root, box, &result)
	return result
}

func (si *SpatialIndex) collect(node *rtreeNode, box Box, out *[]ObjectID) {
	for _, e := range node.entries {
		if !e.bounds.Intersects(box) {
			continue
		}
		if node.leaf {
			if box.Contains(e.bounds.Min) {
				*out = append(*out, e.id)
			}
			continue
		}
		si.collect(e.child, box, out)
	}
}

// Len возвращает число точек в индексе.
func (si *SpatialIndex) Len() int {
	si.mu.RLock()
	defer si.mu.RUnlock()
	return len(si.locs)
}
