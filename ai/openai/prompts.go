package openai

// condenseQuestionTemplate asks the model to turn a follow-up into a
// standalone question. Arguments: chat history, follow-up question.
const condenseQuestionTemplate = `Given the following conversation and a follow up question, rephrase the follow up question to be a standalone question, in its original language.

Chat History:
%s
Follow Up Input: %s
Standalone question:`

// answerSystemTemplate frames the retrieved fragments. Argument: context block.
const answerSystemTemplate = `Use the following pieces of context to answer the question at the end. If you don't know the answer, just say that you don't know, don't try to make up an answer.

%s`
