// internal/chat/synth.go
package chat

import "strings"

// Canned replies used when both remote tiers are down. Templates match
// the support agent's own degraded-mode answers, so the transcript
// stays coherent when the backend comes back.

const pricingTemplate = `Voici nos tarifs TeamSquare :

**Plan Starter** - 29€/mois
• Jusqu'à 10 utilisateurs
• Fonctionnalités de base
• Support email

**Plan Professional** - 79€/mois
• Jusqu'à 50 utilisateurs
• Fonctionnalités avancées
• API incluse
• Support prioritaire

**Plan Enterprise** - 199€/mois
• Utilisateurs illimités
• Toutes les fonctionnalités
• Support dédié 24/7
• Personnalisations

Quel plan vous intéresse le plus ?`

const featuresTemplate = `TeamSquare vous propose :

• Gestion de projets et tâches en équipe
• Messagerie et visioconférence intégrées
• Tableaux de bord et rapports personnalisables
• API ouverte et intégrations tierces
• Sécurité renforcée et sauvegardes automatiques

Souhaitez-vous plus de détails sur une fonctionnalité en particulier ?`

const greetingTemplate = "Bonjour ! Je suis votre assistant TeamSquare. Comment puis-je vous aider aujourd'hui ?"

const genericTemplate = "Je suis désolé, je ne peux pas joindre nos serveurs pour le moment. Je peux tout de même vous renseigner sur les prix, fonctionnalités et services TeamSquare."

var (
	pricingKeywords  = []string{"prix", "tarif", "price", "pricing", "cost", "coût", "abonnement", "plan"}
	featuresKeywords = []string{"fonctionnalité", "fonctionnalite", "feature", "service", "capacité", "capacite", "intégration", "integration"}
	greetingKeywords = []string{"bonjour", "salut", "hello", "bonsoir", "coucou", "hey"}
)

// Synthesize produces a canned reply from keyword rules. Pure and
// deterministic. Rule order is significant: pricing wins over features,
// features over greetings, and anything else gets the generic reply.
func Synthesize(text string) string {
	lower := strings.ToLower(text)

	if containsAny(lower, pricingKeywords) {
		return pricingTemplate
	}
	if containsAny(lower, featuresKeywords) {
		return featuresTemplate
	}
	if containsAny(lower, greetingKeywords) {
		return greetingTemplate
	}
	return genericTemplate
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
