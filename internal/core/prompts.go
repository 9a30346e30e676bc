package core

// prompts.go defines the Portuguese instruction used when refining visit
// descriptions. Keeping it in a separate file makes it easy to tweak without
// touching the rest of the code.

const (
	// DescriptionInstruction asks the model to rewrite the deterministic
	// visit summary as one short clinical sentence for the attending staff.
	// It must not invent values that were not measured.
	DescriptionInstruction = "Reescreva o resumo da triagem a seguir como uma única frase clínica " +
		"curta em português, voltada à equipe de enfermagem. Não invente valores nem sintomas: " +
		"use apenas os dados informados. Não inclua o nome do paciente na frase."
)
