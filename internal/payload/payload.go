// Package payload предоставляет удобный слой (де)сериализации
// пользовательских структур в/из непрозрачного custom_data, который
// internal/vault хранит как байты и никогда не интерпретирует (§9
// "Opaque payload" / "Polymorphism": ядро монoморфно, параметризация по
// типу payload живёт здесь, вне ядра).
package payload

import "encoding/json"

// Encode сериализует v в самоописываемую текстовую форму (JSON), готовую
// к хранению в SpatialObject.CustomData.
func Encode(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// Decode десериализует custom_data обратно в v (должен быть указателем).
func Decode(data []byte, v interface{}) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}
