package vault

import (
	"math"

	"github.com/google/uuid"
)

// ObjectID — стабильный идентификатор пространственного объекта.
type ObjectID = uuid.UUID

// RegionID — стабильный идентификатор региона.
type RegionID = uuid.UUID

// Point представляет точку в мировых координатах.
type Point struct {
	X, Y, Z float64
}

// Finite проверяет, что все компоненты точки — конечные числа.
func (p Point) Finite() bool {
	return isFinite(p.X) && isFinite(p.Y) && isFinite(p.Z)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Box представляет замкнутый осевыровненный прямоугольный параллелепипед.
type Box struct {
	Min, Max Point
}

// Normalized возвращает коробку с покомпонентно упорядоченными Min/Max,
// как того требует §4.1 ("для любой перестановки min/max движок нормализует").
func (b Box) Normalized() Box {
	return Box{
		Min: Point{
			X: math.Min(b.Min.X, b.Max.X),
			Y: math.Min(b.Min.Y, b.Max.Y),
			Z: math.Min(b.Min.Z, b.Max.Z),
		},
		Max: Point{
			X: math.Max(b.Min.X, b.Max.X),
			Y: math.Max(b.Min.Y, b.Max.Y),
			Z: math.Max(b.Min.Z, b.Max.Z),
		},
	}
}

// Contains сообщает, лежит ли точка внутри замкнутой коробки.
// Box должна быть уже нормализована.
func (b Box) Contains(p Point) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// Intersects сообщает, пересекаются ли две коробки (обе нормализованы).
func (b Box) Intersects(other Box) bool {
	return b.Min.X <= other.Max.X && b.Max.X >= other.Min.X &&
		b.Min.Y <= other.Max.Y && b.Max.Y >= other.Min.Y &&
		b.Min.Z <= other.Max.Z && b.Max.Z >= other.Min.Z
}

// Expand возвращает наименьшую коробку, покрывающую b и other.
func (b Box) Expand(other Box) Box {
	return Box{
		Min: Point{
			X: math.Min(b.Min.X, other.Min.X),
			Y: math.Min(b.Min.Y, other.Min.Y),
			Z: math.Min(b.Min.Z, other.Min.Z),
		},
		Max: Point{
			X: math.Max(b.Max.X, other.Max.X),
			Y: math.Max(b.Max.Y, other.Max.Y),
			Z: math.Max(b.Max.Z, other.Max.Z),
		},
	}
}

// boxFromPoint строит вырожденную (нулевого объёма) коробку вокруг точки.
func boxFromPoint(p Point) Box {
	return Box{Min: p, Max: p}
}

// volume возвращает объём коробки, используемый эвристикой вставки R-дерева.
func (b Box) volume() float64 {
	return (b.Max.X - b.Min.X) * (b.Max.Y - b.Min.Y) * (b.Max.Z - b.Min.Z)
}

// enlargement возвращает прирост объёма при расширении b до покрытия other.
func (b Box) enlargement(other Box) float64 {
	return b.Expand(other).volume() - b.volume()
}

// SpatialObject — объект, хранимый в регионе: UUID-идентичность, тип,
// точка положения и непрозрачный пользовательский payload.
//
// CustomData не интерпретируется движком (§9 "Opaque payload"): это байты,
// уже сериализованные вызывающей стороной в самоописываемую текстовую форму
// (JSON-эквивалент). Конвертация в/из пользовательских структур живёт в
// internal/payload, вне ядра.
type SpatialObject struct {
	ID         ObjectID
	RegionID   RegionID
	ObjectType string
	Position   Point
	CustomData []byte
}

// RegionMeta описывает геометрию региона (то, что хранится в реестре
// регионов BackingStore).
type RegionMeta struct {
	ID     RegionID
	Center Point
	Radius float64
}

// sameGeometry сообщает, совпадают ли две геометрии региона по точному
// битовому равенству double — см. §4.4 ("Open question").
func (m RegionMeta) sameGeometry(center Point, radius float64) bool {
	return m.Center.X == center.X && m.Center.Y == center.Y && m.Center.Z == center.Z && m.Radius == radius
}
