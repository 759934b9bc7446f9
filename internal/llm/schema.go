package llm

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// RatingAnswer es la forma estructurada que se exige a los modelos.
type RatingAnswer struct {
	Score int `json:"score" jsonschema:"required,enum=1,enum=2,enum=3,enum=4,enum=5" jsonschema_description:"Rating from 1-5 where 1=strongly disagree and 5=strongly agree"`
}

const (
	ratingSchemaName        = "PersonalityResponse"
	ratingSchemaDescription = "A response to a personality assessment question with a score from 1-5"
)

var ratingSchema = generateSchema[RatingAnswer]()

// RatingSchema devuelve una copia del JSON schema del rating.
func RatingSchema() map[string]any {
	return cloneSchema(ratingSchema)
}

func generateSchema[T any]() map[string]any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	var v T
	schema := reflector.Reflect(v)
	b, err := schema.MarshalJSON()
	if err != nil {
		panic(err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		panic(err)
	}
	// strict mode de OpenAI rechaza las claves de meta-schema.
	delete(m, "$schema")
	delete(m, "$id")
	m["additionalProperties"] = false
	return m
}

func cloneSchema(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	b, err := json.Marshal(in)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil
	}
	return out
}
