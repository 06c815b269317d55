package app

import (
	"grimoire/internal/entity"
	"grimoire/internal/refcodec"
)

// seedCatalog is the sample content loaded into an empty database. Some
// descriptions reference each other so previews have something to resolve.
func seedCatalog() []entity.Detail {
	ref := refcodec.Encode

	return []entity.Detail{
		{
			Type: entity.Rule, ID: "rule-agarrar", Name: "Agarrar", Status: entity.StatusActive,
			Description: "<p>Teste de " + ref(entity.Ability, "ability-forca", "Força") + " contra a defesa do alvo. Um alvo agarrado fica desprevenido.</p>",
			Attributes:  map[string]string{"category": "Combate"},
		},
		{
			Type: entity.Rule, ID: "rule-queda", Name: "Queda", Status: entity.StatusActive,
			Description: "<p>Sofre 1d6 de dano para cada 3m de queda.</p>",
			Attributes:  map[string]string{"category": "Ambiente"},
		},
		{
			Type: entity.Rule, ID: "rule-flanquear", Name: "Flanquear", Status: entity.StatusActive,
			Description: "<p>Dois aliados em lados opostos do alvo recebem +2 no ataque corpo a corpo.</p>",
			Attributes:  map[string]string{"category": "Combate"},
		},
		{
			Type: entity.Rule, ID: "rule-iniciativa-antiga", Name: "Iniciativa Fixa", Status: "inactive",
			Description: "<p>Regra substituída por " + ref(entity.Rule, "rule-flanquear", "Flanquear") + ".</p>",
			Attributes:  map[string]string{"category": "Combate"},
		},
		{
			Type: entity.Ability, ID: "ability-forca", Name: "Força", Status: entity.StatusActive,
			Description: "<p>Mede potência física. Usada em " + ref(entity.Rule, "rule-agarrar", "Agarrar") + " e ataques corpo a corpo.</p>",
			Attributes:  map[string]string{"attribute": "FOR"},
		},
		{
			Type: entity.Ability, ID: "ability-destreza", Name: "Destreza", Status: entity.StatusActive,
			Description: "<p>Agilidade, reflexos e equilíbrio.</p>",
			Attributes:  map[string]string{"attribute": "DES"},
		},
		{
			Type: entity.Ability, ID: "ability-sabedoria", Name: "Sabedoria", Status: entity.StatusActive,
			Description: "<p>Percepção e força de vontade.</p>",
			Attributes:  map[string]string{"attribute": "SAB"},
		},
		{
			Type: entity.Feat, ID: "feat-forca-bruta", Name: "Força Bruta", Status: entity.StatusActive,
			Description: "<p>Some " + ref(entity.Ability, "ability-forca", "Força") + " ao dano de manobras de " + ref(entity.Rule, "rule-agarrar", "Agarrar") + ".</p>",
			Attributes:  map[string]string{"category": "Combate", "prerequisite": "For 15"},
		},
		{
			Type: entity.Feat, ID: "feat-reflexos", Name: "Reflexos Rápidos", Status: entity.StatusActive,
			Description: "<p>+2 em testes de " + ref(entity.Ability, "ability-destreza", "Destreza") + " contra áreas.</p>",
			Attributes:  map[string]string{"category": "Defesa"},
		},
		{
			Type: entity.Feat, ID: "feat-magia-focada", Name: "Magia Focada", Status: entity.StatusActive,
			Description: "<p>A CD de " + ref(entity.Spell, "spell-bola-de-fogo", "Bola de Fogo") + " e outras magias da escola aumenta em 1.</p>",
			Attributes:  map[string]string{"category": "Magia", "prerequisite": "Conjurador"},
		},
		{
			Type: entity.Spell, ID: "spell-fogo", Name: "Fogo", Status: entity.StatusActive,
			Description: "<p>Uma pequena chama incendeia um objeto ao alcance.</p>",
			Attributes:  map[string]string{"circle": "1", "school": "Evocação"},
		},
		{
			Type: entity.Spell, ID: "spell-bola-de-fogo", Name: "Bola de Fogo", Status: entity.StatusActive,
			Description: "<p>Explosão de 6m de raio. Objetos inflamáveis pegam " + ref(entity.Spell, "spell-fogo", "Fogo") + ". Veja " + ref(entity.Feat, "feat-magia-focada", "Magia Focada") + ".</p>",
			Attributes:  map[string]string{"circle": "3", "school": "Evocação"},
		},
		{
			Type: entity.Spell, ID: "spell-escudo-arcano", Name: "Escudo Arcano", Status: entity.StatusActive,
			Description: "<p>+5 na defesa até o início do próximo turno. Bloqueia " + ref(entity.Spell, "spell-missil", "Míssil Mágico") + ".</p>",
			Attributes:  map[string]string{"circle": "1", "school": "Abjuração"},
		},
		{
			Type: entity.Spell, ID: "spell-missil", Name: "Míssil Mágico", Status: entity.StatusActive,
			Description: "<p>Três dardos de energia que nunca erram.</p>",
			Attributes:  map[string]string{"circle": "1", "school": "Evocação"},
		},
	}
}
