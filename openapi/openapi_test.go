package openapi

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/broady/contract"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const petstore = `
openapi: 3.0.3
info:
  title: Petstore
  version: 1.0.0
paths:
  /pets:
    get:
      operationId: listPets
      summary: List pets
      parameters:
        - name: limit
          in: query
          schema:
            type: integer
            minimum: 1
            maximum: 100
        - name: tags
          in: query
          schema:
            type: array
            items:
              type: string
      responses:
        "200":
          description: ok
          content:
            application/json:
              schema:
                type: array
                items:
                  $ref: "#/components/schemas/Pet"
        default:
          description: error
          content:
            application/json:
              schema:
                $ref: "#/components/schemas/Error"
    post:
      operationId: createPet
      requestBody:
        required: true
        content:
          application/json:
            schema:
              $ref: "#/components/schemas/NewPet"
      responses:
        "201":
          description: created
          content:
            application/json:
              schema:
                $ref: "#/components/schemas/Pet"
  /pets/{petId}:
    parameters:
      - name: petId
        in: path
        required: true
        schema:
          type: integer
    get:
      operationId: getPet
      parameters:
        - name: X-Trace
          in: header
          schema:
            type: string
      responses:
        "200":
          description: ok
          content:
            application/json:
              schema:
                $ref: "#/components/schemas/Pet"
        "404":
          description: not found
          content:
            application/json:
              schema:
                $ref: "#/components/schemas/Error"
  /pets/{petId}/photo:
    put:
      operationId: uploadPhoto
      parameters:
        - name: petId
          in: path
          required: true
          schema:
            type: integer
      requestBody:
        content:
          multipart/form-data:
            schema:
              type: object
      responses:
        "204":
          description: uploaded
components:
  schemas:
    Pet:
      type: object
      required: [id, name]
      properties:
        id:
          type: integer
        name:
          type: string
        owner:
          $ref: "#/components/schemas/Owner"
    Owner:
      type: object
      nullable: true
      properties:
        name:
          type: string
    NewPet:
      type: object
      required: [name]
      properties:
        name:
          type: string
          minLength: 1
    Error:
      type: object
      required: [error]
      properties:
        error:
          type: string
`

func loadPetstore(t *testing.T) *contract.Registry {
	t.Helper()
	eps, err := LoadData(context.Background(), []byte(petstore))
	require.NoError(t, err)
	return contract.MustRegistry(eps...)
}

func TestLoadData_Endpoints(t *testing.T) {
	api := loadPetstore(t)

	var got []string
	for _, e := range api.Endpoints() {
		got = append(got, e.String()+" "+e.Alias)
	}
	assert.Equal(t, []string{
		"get /pets listPets",
		"post /pets createPet",
		"get /pets/:petId getPet",
		"put /pets/:petId/photo uploadPhoto",
	}, got)

	list, err := api.FindByAlias("listPets")
	require.NoError(t, err)
	assert.Equal(t, "List pets", list.Description)

	upload, err := api.FindByAlias("uploadPhoto")
	require.NoError(t, err)
	assert.Equal(t, contract.FormatFormData, upload.Format())
}

func TestLoadData_ParameterCoercion(t *testing.T) {
	api := loadPetstore(t)
	ctx := context.Background()

	get, err := api.FindByAlias("getPet")
	require.NoError(t, err)
	require.Len(t, get.Parameters, 2)

	petID := get.Parameters[0]
	assert.Equal(t, "petId", petID.Name)
	assert.Equal(t, contract.ParamPath, petID.Type)
	v, err := petID.Schema.Parse(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)
	_, err = petID.Schema.Parse(ctx, "abc")
	assert.Error(t, err)
	_, err = petID.Schema.Parse(ctx, nil)
	assert.Error(t, err, "path parameters are required")

	trace := get.Parameters[1]
	assert.Equal(t, contract.ParamHeader, trace.Type)
	v, err = trace.Schema.Parse(ctx, nil)
	require.NoError(t, err)
	assert.Nil(t, v)

	list, err := api.FindByAlias("listPets")
	require.NoError(t, err)
	limit := list.Parameters[0]
	v, err = limit.Schema.Parse(ctx, "10")
	require.NoError(t, err)
	assert.Equal(t, int64(10), v)
	_, err = limit.Schema.Parse(ctx, "500")
	assert.Error(t, err, "maximum applies after coercion")

	tags := list.Parameters[1]
	v, err = tags.Schema.Parse(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []any{"a"}, v)
}

func TestLoadData_BodyAndResponses(t *testing.T) {
	api := loadPetstore(t)
	ctx := context.Background()

	create, err := api.FindByAlias("createPet")
	require.NoError(t, err)
	body, ok := create.BodyParameter()
	require.True(t, ok)
	_, err = body.Schema.Parse(ctx, map[string]any{"name": "rex"})
	assert.NoError(t, err)
	_, err = body.Schema.Parse(ctx, map[string]any{"name": ""})
	assert.Error(t, err)
	_, err = body.Schema.Parse(ctx, nil)
	assert.Error(t, err, "required body")

	require.NotNil(t, create.Response)
	_, err = create.Response.Parse(ctx, map[string]any{"id": 1, "name": "rex", "owner": nil})
	assert.NoError(t, err, "nullable owner accepts null")
	_, err = create.Response.Parse(ctx, map[string]any{"id": 1})
	assert.Error(t, err)

	get, err := api.FindByAlias("getPet")
	require.NoError(t, err)
	defs := get.MatchErrors(404)
	require.Len(t, defs, 1)
	_, err = defs[0].Schema.Parse(ctx, map[string]any{"error": "not found"})
	assert.NoError(t, err)

	list, err := api.FindByAlias("listPets")
	require.NoError(t, err)
	defs = list.MatchErrors(500)
	require.Len(t, defs, 1)
	assert.True(t, defs[0].Default)
}

func TestLoadData_Swagger2(t *testing.T) {
	doc := `
swagger: "2.0"
info:
  title: legacy
  version: "1"
paths:
  /items/{id}:
    get:
      operationId: getItem
      produces: [application/json]
      parameters:
        - name: id
          in: path
          required: true
          type: integer
      responses:
        200:
          description: ok
          schema:
            type: object
            properties:
              id:
                type: integer
`
	eps, err := LoadData(context.Background(), []byte(doc))
	require.NoError(t, err)
	require.Len(t, eps, 1)
	assert.Equal(t, contract.MethodGet, eps[0].Method)
	assert.Equal(t, "/items/:id", eps[0].Path)
	assert.Equal(t, "getItem", eps[0].Alias)
	require.NotNil(t, eps[0].Response)
}

func TestLoadData_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"no version", "info: {title: x}\n"},
		{"not yaml", "openapi: [\n"},
		{"unresolved ref", `
openapi: 3.0.3
info: {title: x, version: "1"}
paths:
  /a:
    get:
      responses:
        "200":
          description: ok
          content:
            application/json:
              schema:
                $ref: "#/components/schemas/Missing"
`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadData(context.Background(), []byte(tt.doc))
			var oe *Error
			assert.True(t, errors.As(err, &oe), "expected *openapi.Error, got %v", err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "petstore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(petstore), 0o644))

	eps, err := Load(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, eps, 4)

	_, err = Load(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"))
	var oe *Error
	require.ErrorAs(t, err, &oe)
	assert.Contains(t, oe.Location, "missing.yaml")
}
