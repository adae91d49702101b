package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/prisma-engines-go/migrate/introspect"
)

func TestStepsJSON(t *testing.T) {
	steps := Diff(introspect.Empty(), blogSchema())
	steps = append(steps,
		AlterTable{Table: "User", Changes: []TableChange{
			AddColumn{Column: col("name", introspect.FamilyString, introspect.Nullable)},
			DropColumn{Name: "age"},
			AlterColumn{Name: "email", Column: col("email", introspect.FamilyString, introspect.Nullable)},
		}},
		RawSQL{SQL: PragmaForeignKeysOff},
		RenameTable{Name: "new_User", NewName: "User"},
		DropIndex{Table: "User", Name: "User.email._UNIQUE"},
		DropTable{Name: "Legacy"},
	)

	data, err := MarshalSteps(steps)
	require.NoError(t, err)
	assert.Contains(t, string(data), `{"stepType":"CreateTable","name":"User"`)
	assert.Contains(t, string(data), `{"changeType":"DropColumn","name":"age"}`)

	decoded, err := UnmarshalSteps(data)
	require.NoError(t, err)
	assert.Equal(t, steps, decoded)
	assert.True(t, StepsEqual(steps, decoded))
}

func TestUnmarshalStepsRejectsUnknown(t *testing.T) {
	_, err := UnmarshalSteps([]byte(`[{"stepType":"Explode","name":"x"}]`))
	assert.Error(t, err)

	_, err = UnmarshalSteps([]byte(`[{"stepType":"DropTable","name":"x","force":true}]`))
	assert.Error(t, err)

	_, err = UnmarshalSteps([]byte(`[{"name":"x"}]`))
	assert.Error(t, err)
}

func TestStepsEqualIsOrderSensitive(t *testing.T) {
	a := []Step{DropTable{Name: "A"}, DropTable{Name: "B"}}
	b := []Step{DropTable{Name: "B"}, DropTable{Name: "A"}}
	assert.False(t, StepsEqual(a, b))
	assert.True(t, StepsEqual(a, a))
	assert.True(t, StepsEqual(nil, []Step{}))
}
