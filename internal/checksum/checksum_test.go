package checksum

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateCPF(t *testing.T) {
	t.Run("known valid number", func(t *testing.T) {
		assert.True(t, ValidateCPF("11144477735"))
	})

	t.Run("repeated digits are rejected", func(t *testing.T) {
		for d := byte('0'); d <= '9'; d++ {
			cpf := string(make([]byte, 0, 11))
			for i := 0; i < 11; i++ {
				cpf += string(d)
			}
			assert.False(t, ValidateCPF(cpf), "cpf %s", cpf)
		}
	})

	t.Run("wrong length", func(t *testing.T) {
		assert.False(t, ValidateCPF(""))
		assert.False(t, ValidateCPF("1114447773"))
		assert.False(t, ValidateCPF("111444777350"))
	})

	t.Run("non digits", func(t *testing.T) {
		assert.False(t, ValidateCPF("111.444.777"))
		assert.False(t, ValidateCPF("1114447773a"))
	})

	t.Run("single digit mutation invalidates", func(t *testing.T) {
		valid := "11144477735"
		for pos := 0; pos < len(valid); pos++ {
			for d := byte('0'); d <= '9'; d++ {
				if valid[pos] == d {
					continue
				}
				mutated := valid[:pos] + string(d) + valid[pos+1:]
				assert.False(t, ValidateCPF(mutated), "mutation %s at position %d", mutated, pos)
			}
		}
	})
}

func TestValidateCNH(t *testing.T) {
	t.Run("known valid number", func(t *testing.T) {
		// 123456789 -> first digit 165%11=0, second digit 285%11=10 -> 0
		assert.True(t, ValidateCNH("12345678900"))
	})

	t.Run("known invalid number", func(t *testing.T) {
		assert.False(t, ValidateCNH("12345678901"))
	})

	t.Run("repeated digits are rejected", func(t *testing.T) {
		for d := byte('0'); d <= '9'; d++ {
			cnh := ""
			for i := 0; i < 11; i++ {
				cnh += string(d)
			}
			assert.False(t, ValidateCNH(cnh), "cnh %s", cnh)
		}
	})

	t.Run("wrong length and shape", func(t *testing.T) {
		assert.False(t, ValidateCNH(""))
		assert.False(t, ValidateCNH("123456789"))
		assert.False(t, ValidateCNH("12345678900x"))
		assert.False(t, ValidateCNH("abcdefghijk"))
	})

	t.Run("deterministic", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			assert.True(t, ValidateCNH("12345678900"), "run %d", i)
		}
	})
}

func ExampleValidateCPF() {
	fmt.Println(ValidateCPF("11144477735"))
	fmt.Println(ValidateCPF("11144477736"))
	// Output:
	// true
	// false
}
